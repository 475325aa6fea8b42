// Package dangerzone вычисляет признак «зоны риска» торгового представителя: 7 и более
// дней без конвертаций. Результат кэшируется на сутки.
package dangerzone

import (
	"time"
)

const (
	// Threshold задаёт число дней без конвертаций, начиная с которого включается зона риска.
	Threshold = 7
	// TTL задаёт срок годности закэшированного значения.
	TTL = 24 * time.Hour
)

// Entry хранит закэшированное состояние зоны риска.
type Entry struct {
	LastConversionDate      *time.Time `json:"last_conversion_date,omitempty"`
	IsInDangerZone          bool       `json:"is_in_danger_zone"`
	DaysSinceLastConversion int        `json:"days_since_last_conversion"`
	Timestamp               time.Time  `json:"timestamp"`
}

// State описывает состояние записи кэша относительно текущего момента.
type State int

const (
	Unknown State = iota
	Stale
	Fresh
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// StateOf классифицирует запись кэша: без записи Unknown, старше TTL Stale.
func StateOf(cached *Entry, now time.Time) State {
	if cached == nil || cached.Timestamp.IsZero() {
		return Unknown
	}
	if now.Sub(cached.Timestamp) < TTL {
		return Fresh
	}
	return Stale
}

// Tier указывает уровень, с которого взят результат.
type Tier string

const (
	TierCache          Tier = "cache"
	TierLastConversion Tier = "last_conversion"
	TierJoinDate       Tier = "join_date"
	TierDefault        Tier = "default"
)

// Source содержит сведения из авторитетного источника. Available == false, если источник
// не ответил; LastConversion == nil при Available означает, что конвертаций не было.
type Source struct {
	Available      bool
	LastConversion *time.Time
	JoinDate       *time.Time
}

// Result содержит итог разрешения.
type Result struct {
	Entry Entry
	Tier  Tier
	// Computed означает свежий расчёт, который нужно записать в кэш.
	Computed bool
}

// Resolve проходит уровни по порядку: свежий кэш, дата последней конвертации,
// стаж без конвертаций, оптимистичное значение по умолчанию.
func Resolve(cached *Entry, src Source, now time.Time) Result {
	if StateOf(cached, now) == Fresh {
		return Result{Entry: *cached, Tier: TierCache}
	}

	if src.Available && src.LastConversion != nil {
		days := DaysBetween(*src.LastConversion, now)
		last := *src.LastConversion
		return Result{
			Entry: Entry{
				LastConversionDate:      &last,
				IsInDangerZone:          days >= Threshold,
				DaysSinceLastConversion: days,
				Timestamp:               now,
			},
			Tier:     TierLastConversion,
			Computed: true,
		}
	}

	if src.Available && src.JoinDate != nil {
		days := DaysBetween(*src.JoinDate, now)
		return Result{
			Entry: Entry{
				IsInDangerZone:          days >= Threshold,
				DaysSinceLastConversion: days,
				Timestamp:               now,
			},
			Tier:     TierJoinDate,
			Computed: true,
		}
	}

	return Result{Entry: Entry{}, Tier: TierDefault}
}

// DaysBetween возвращает число полных суток между датами без учёта времени суток.
func DaysBetween(from, to time.Time) int {
	days := int(midnight(to).Sub(midnight(from.In(to.Location()))) / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days
}

// midnight переносит календарную дату в UTC, чтобы переход на летнее время не сдвигал сутки.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
