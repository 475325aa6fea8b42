// Package target считает выполнение планов продаж, командные итоги и конверсию.
package target

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/leadflow/internal/model"
)

// ComputeProgress возвращает процент выполнения плана в пределах [0, 100].
func ComputeProgress(monthlySales, amount int64) int {
	if amount <= 0 || monthlySales <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(monthlySales).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(amount)).
		Round(0).
		IntPart()
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// IsAchieved сообщает, что план выполнен.
func IsAchieved(monthlySales int64, t model.Target) bool {
	return t.Amount > 0 && monthlySales >= t.Amount
}

// IsDeadlinePassed сообщает, что срок плана истёк.
func IsDeadlinePassed(t model.Target, now time.Time) bool {
	return now.After(t.Deadline)
}

// Evaluate рассчитывает производные показатели плана.
func Evaluate(t model.Target, monthlySales int64, now time.Time) model.TargetProgress {
	return model.TargetProgress{
		Target:           t,
		MonthlySales:     monthlySales,
		Progress:         ComputeProgress(monthlySales, t.Amount),
		IsAchieved:       IsAchieved(monthlySales, t),
		IsDeadlinePassed: IsDeadlinePassed(t, now),
	}
}

// SelectActive выбирает самый ранний невыполненный и непросроченный план. Если такого нет,
// возвращается последний созданный, чтобы интерфейсу всегда было что показать.
// Для пустого списка ok == false.
func SelectActive(targets []model.Target, monthlySales int64, now time.Time) (model.Target, bool) {
	if len(targets) == 0 {
		return model.Target{}, false
	}

	sorted := make([]model.Target, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Deadline.Equal(sorted[j].Deadline) {
			return sorted[i].Deadline.Before(sorted[j].Deadline)
		}
		return sorted[i].TargetNumber < sorted[j].TargetNumber
	})

	for _, t := range sorted {
		if !IsAchieved(monthlySales, t) && !IsDeadlinePassed(t, now) {
			return t, true
		}
	}

	latest := targets[0]
	for _, t := range targets[1:] {
		if t.CreatedAt.After(latest.CreatedAt) ||
			(t.CreatedAt.Equal(latest.CreatedAt) && t.TargetNumber > latest.TargetNumber) {
			latest = t
		}
	}
	return latest, true
}

// MemberSales содержит продажи одного участника команды за месяц.
type MemberSales struct {
	RepID        int64 `json:"rep_id"`
	MonthlySales int64 `json:"monthly_sales"`
}

// TeamRollup содержит итоги команды относительно плана руководителя.
type TeamRollup struct {
	TeamLeadID       int64                 `json:"team_lead_id"`
	Members          []MemberSales         `json:"members"`
	TeamMonthlySales int64                 `json:"team_monthly_sales"`
	TeamProgress     int                   `json:"team_progress"`
	TeamLeadTarget   *model.TargetProgress `json:"team_lead_target,omitempty"`
}

// Rollup суммирует продажи участников и считает прогресс по плану руководителя.
func Rollup(teamLeadID int64, members []MemberSales, leadTarget *model.Target, now time.Time) TeamRollup {
	r := TeamRollup{TeamLeadID: teamLeadID, Members: members}
	for _, m := range members {
		r.TeamMonthlySales += m.MonthlySales
	}
	if leadTarget != nil {
		tp := Evaluate(*leadTarget, r.TeamMonthlySales, now)
		r.TeamLeadTarget = &tp
		r.TeamProgress = tp.Progress
	}
	return r
}

// ConversionRate возвращает converted / total * 100, округлённое до сотых; 0 при total == 0.
func ConversionRate(converted, total int) float64 {
	if total <= 0 {
		return 0
	}
	rate, _ := decimal.NewFromInt(int64(converted)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2).
		Float64()
	return rate
}

// MonthBounds возвращает начало текущего и следующего календарного месяца.
func MonthBounds(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}
