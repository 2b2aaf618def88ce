package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/storage"
)

// Actor - пользователь, от имени которого выполняется операция.
type Actor struct {
	UserID int
	Role   models.UserRole
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// CanManage reports whether the actor may change a resource owned by ownerID.
func (a Actor) CanManage(ownerID int) bool {
	return a.IsAdmin() || (a.UserID != 0 && a.UserID == ownerID)
}

// IsStaff - администратор или организатор.
func (a Actor) IsStaff() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleOrganizer
}

// --- Общие хелперы ---

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func validateTournamentDates(reg, start, end time.Time) error {
	if reg.IsZero() || start.IsZero() || end.IsZero() {
		return ErrTournamentDatesRequired
	}
	if reg.After(start) {
		return fmt.Errorf("%w: registration date (%s) cannot be after start date (%s)", ErrTournamentInvalidRegDate, reg.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start date (%s) must be before end date (%s)", ErrTournamentInvalidDateRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusSoon:         {models.StatusRegistration, models.StatusCanceled},
		models.StatusRegistration: {models.StatusFull, models.StatusActive, models.StatusCanceled},
		models.StatusFull:         {models.StatusRegistration, models.StatusActive, models.StatusCanceled},
		models.StatusActive:       {models.StatusCompleted, models.StatusCanceled},
		models.StatusCompleted:    {},
		models.StatusCanceled:     {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

// ComputeStatus выводит статус турнира из дат, числа подтверждённых заявок и победителя.
func ComputeStatus(t *models.Tournament, confirmedCount int, now time.Time) models.TournamentStatus {
	if t.Status == models.StatusCanceled {
		return models.StatusCanceled
	}
	if t.WinnerRegistrationID != nil {
		return models.StatusCompleted
	}
	switch {
	case now.Before(t.RegDate):
		return models.StatusSoon
	case now.Before(t.StartDate):
		if t.MaxEntries > 0 && confirmedCount >= t.MaxEntries {
			return models.StatusFull
		}
		return models.StatusRegistration
	case now.Before(t.EndDate):
		return models.StatusActive
	default:
		return models.StatusCompleted
	}
}

func statusRank(s models.TournamentStatus) int {
	switch s {
	case models.StatusSoon:
		return 0
	case models.StatusRegistration, models.StatusFull:
		return 1
	case models.StatusActive:
		return 2
	default:
		return 3
	}
}

// shouldAutoApply: планировщик двигает статус только вперёд; registration <-> full
// переключается в обе стороны по числу подтверждённых заявок.
func shouldAutoApply(current, computed models.TournamentStatus) bool {
	if current == computed || current.IsTerminal() {
		return false
	}
	if statusRank(current) == 1 && statusRank(computed) == 1 {
		return true
	}
	return statusRank(computed) > statusRank(current)
}

// orderBySeed sorts registrations: seeded first by seed, then the rest by id.
func orderBySeed(regs []*models.Registration) []int {
	sorted := make([]*models.Registration, len(regs))
	copy(sorted, regs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch {
		case a.Seed != nil && b.Seed != nil:
			if *a.Seed != *b.Seed {
				return *a.Seed < *b.Seed
			}
		case a.Seed != nil:
			return true
		case b.Seed != nil:
			return false
		}
		return a.ID < b.ID
	})
	ids := make([]int, len(sorted))
	for i, r := range sorted {
		ids[i] = r.ID
	}
	return ids
}

func seedMap(regs []*models.Registration) map[int]int {
	seeds := make(map[int]int, len(regs))
	for _, r := range regs {
		if r.Seed != nil {
			seeds[r.ID] = *r.Seed
		}
	}
	return seeds
}

func nameMap(regs []*models.Registration) map[int]string {
	names := make(map[int]string, len(regs))
	for _, r := range regs {
		names[r.ID] = r.DisplayName()
	}
	return names
}

func poolName(position int) string {
	if position >= 1 && position <= 26 {
		return string(rune('A' + position - 1))
	}
	return fmt.Sprintf("Pool %d", position)
}

// --- Хелперы для заполнения URL логотипов ---

func populateTournamentLogoURLFunc(tournament *models.Tournament, uploader storage.FileUploader) {
	if tournament != nil && tournament.LogoKey != nil && *tournament.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*tournament.LogoKey)
		if url != "" {
			tournament.LogoURL = &url
		}
	}
}

func populateTeamLogoURLFunc(team *models.Team, uploader storage.FileUploader) {
	if team != nil && team.LogoKey != nil && *team.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*team.LogoKey)
		if url != "" {
			team.LogoURL = &url
		}
	}
}

func populateRegistrationListDetailsFunc(regs []*models.Registration, uploader storage.FileUploader) {
	if uploader == nil {
		return
	}
	for _, r := range regs {
		if r != nil && r.Team != nil {
			populateTeamLogoURLFunc(r.Team, uploader)
		}
	}
}

// newLogoKey maps an unsupported image type to a validation error.
func newLogoKey(owner string, id int, contentType string) (string, error) {
	key, err := storage.LogoKey(owner, id, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return key, nil
}

func derefMatches(slice []*models.Match) []models.Match {
	result := make([]models.Match, 0, len(slice))
	for _, m := range slice {
		if m != nil {
			result = append(result, *m)
		}
	}
	return result
}

func derefRegistrations(slice []*models.Registration) []models.Registration {
	result := make([]models.Registration, 0, len(slice))
	for _, r := range slice {
		if r != nil {
			result = append(result, *r)
		}
	}
	return result
}
