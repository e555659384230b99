package domain

import "time"

// Personality описывает характер персоны и тон генерируемого текста.
type Personality string

const (
	PersonalityFriendly    Personality = "friendly"
	PersonalityExpert      Personality = "expert"
	PersonalityHumorous    Personality = "humorous"
	PersonalitySkeptical   Personality = "skeptical"
	PersonalityInquisitive Personality = "inquisitive"
)

// Personalities возвращает фиксированный набор характеров.
func Personalities() []Personality {
	return []Personality{
		PersonalityFriendly,
		PersonalityExpert,
		PersonalityHumorous,
		PersonalitySkeptical,
		PersonalityInquisitive,
	}
}

// Valid сообщает, входит ли значение в фиксированный набор.
func (p Personality) Valid() bool {
	for _, known := range Personalities() {
		if p == known {
			return true
		}
	}
	return false
}

// ContentKind задаёт тип публикуемого контента.
type ContentKind string

const (
	KindPost    ContentKind = "post"
	KindComment ContentKind = "comment"
	KindReply   ContentKind = "reply"
)

// Persona — синтетический автор, от имени которого публикуется контент.
type Persona struct {
	ID          int64
	UserID      int64
	Nickname    string
	Personality Personality
	Active      bool
	CreatedAt   time.Time
}

// PoolItem — заранее сгенерированная единица контента.
// Used истинно тогда и только тогда, когда на элемент ссылается ровно одна живая публикация.
type PoolItem struct {
	ID          int64
	Kind        ContentKind
	Personality Personality
	Title       string
	Body        string
	Category    string
	Used        bool
	UsedPostID  *int64
	CreatedAt   time.Time
}

// PublishedContent — пост, комментарий или ответ, созданный движком.
type PublishedContent struct {
	ID              int64
	Kind            ContentKind
	AuthorUserID    int64
	PersonaID       int64
	PostID          int64
	ParentCommentID *int64
	Title           string
	Body            string
	Category        string
	PoolItemID      *int64
	CreatedAt       time.Time
}

// TargetPost — существующий пост, на который можно отреагировать комментарием.
type TargetPost struct {
	ID           int64
	AuthorUserID int64
	Title        string
	Body         string
	CreatedAt    time.Time
}

// TargetComment — комментарий верхнего уровня, на который можно ответить.
type TargetComment struct {
	ID           int64
	PostID       int64
	AuthorUserID int64
	Body         string
	CreatedAt    time.Time
}

// EngineConfig — настройки движка, которые меняет только админка.
type EngineConfig struct {
	Enabled          bool      `json:"enabled"`
	ActiveStartHour  int       `json:"active_start_hour"`
	ActiveEndHour    int       `json:"active_end_hour"`
	PostsPerDay      int       `json:"posts_per_day"`
	CommentsPerDay   int       `json:"comments_per_day"`
	RepliesPerDay    int       `json:"replies_per_day"`
	BoostRealContent bool      `json:"boost_real_content"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BaseTarget возвращает базовую дневную цель для типа контента.
func (c EngineConfig) BaseTarget(kind ContentKind) int {
	switch kind {
	case KindPost:
		return c.PostsPerDay
	case KindComment:
		return c.CommentsPerDay
	case KindReply:
		return c.RepliesPerDay
	}
	return 0
}

// DailyCounts — производные счётчики публикаций персон за локальные сутки.
type DailyCounts struct {
	Posts    int `json:"posts"`
	Comments int `json:"comments"`
	Replies  int `json:"replies"`
}

// Of возвращает счётчик для типа контента.
func (c DailyCounts) Of(kind ContentKind) int {
	switch kind {
	case KindPost:
		return c.Posts
	case KindComment:
		return c.Comments
	case KindReply:
		return c.Replies
	}
	return 0
}

// KindCounts хранит значения по типам контента.
type KindCounts struct {
	Posts    int `json:"posts"`
	Comments int `json:"comments"`
	Replies  int `json:"replies"`
}

// Add увеличивает счётчик указанного типа.
func (c *KindCounts) Add(kind ContentKind, n int) {
	switch kind {
	case KindPost:
		c.Posts += n
	case KindComment:
		c.Comments += n
	case KindReply:
		c.Replies += n
	}
}

// Get возвращает значение для типа контента.
func (c KindCounts) Get(kind ContentKind) int {
	switch kind {
	case KindPost:
		return c.Posts
	case KindComment:
		return c.Comments
	case KindReply:
		return c.Replies
	}
	return 0
}

// SkipReason объясняет, почему прогон ничего не сделал.
type SkipReason string

const (
	SkipDisabled      SkipReason = "disabled"
	SkipOutsideWindow SkipReason = "outside_window"
	SkipLocked        SkipReason = "locked"
)

// UnitSkip — причина пропуска отдельной единицы работы.
type UnitSkip string

const (
	UnitSkipProvider     UnitSkip = "provider_failure"
	UnitSkipClaim        UnitSkip = "claim_conflict"
	UnitSkipNoTarget     UnitSkip = "no_target"
	UnitSkipNoPoolItem   UnitSkip = "no_pool_item"
	UnitSkipPublishError UnitSkip = "publish_error"
)

// RunSummary — структурированный итог одного прогона движка.
type RunSummary struct {
	RunID        string           `json:"run_id"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	LocalHour    int              `json:"local_hour"`
	Skipped      SkipReason       `json:"skipped,omitempty"`
	Config       EngineConfig     `json:"config"`
	ActiveHours  int              `json:"active_hours"`
	TotalSlots   int              `json:"total_slots"`
	DailyTargets KindCounts       `json:"daily_targets"`
	Quota        KindCounts       `json:"quota"`
	Published    KindCounts       `json:"published"`
	Boosted      int              `json:"boosted"`
	UnitsSkipped map[UnitSkip]int `json:"units_skipped,omitempty"`
	TodayTotals  DailyCounts      `json:"today_totals"`
}

// TotalPublished возвращает общее число опубликованных единиц, включая буст.
func (s RunSummary) TotalPublished() int {
	return s.Published.Posts + s.Published.Comments + s.Published.Replies + s.Boosted
}

// LLMUsage описывает расход токенов одного вызова провайдера.
type LLMUsage struct {
	Feature          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	OccurredAt       time.Time
}

// GeneratedText — единица текста от генеративного провайдера.
type GeneratedText struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// GenerationRequest — запрос к генеративному провайдеру.
type GenerationRequest struct {
	Kind     ContentKind
	Tone     Personality
	SeedText string
	Category string
	Count    int
}

// Generation — результат вызова провайдера.
type Generation struct {
	Items []GeneratedText
	Usage LLMUsage
}

// Notification — уведомление внутри приложения для органического пользователя.
type Notification struct {
	ID              int64
	RecipientUserID int64
	ActorUserID     int64
	Type            ContentKind
	PostID          int64
	CommentID       int64
	CreatedAt       time.Time
}
