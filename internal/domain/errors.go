package domain

import "errors"

var (
	// ErrClaimConflict — элемент пула уже захвачен другим прогоном.
	ErrClaimConflict = errors.New("pool item already claimed")
	// ErrProviderFailure — сетевая ошибка, таймаут или не-2xx ответ провайдера.
	ErrProviderFailure = errors.New("generative provider failure")
	// ErrParseFailure — ответ провайдера не разбирается как JSON-массив.
	ErrParseFailure = errors.New("generative provider response is malformed")
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized — неверный секрет вызова.
	ErrUnauthorized = errors.New("unauthorized")
)
