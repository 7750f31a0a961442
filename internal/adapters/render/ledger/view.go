package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/gptmeter/internal/domain"
)

type RenderOptions struct {
	Now          time.Time
	Privileged   domain.Identity
	CentsPerUnit float64
}

func renderView(snapshot domain.Snapshot, opts RenderOptions, s styles) string {
	accounts := snapshot.SortedAccounts()
	aggregate := snapshot.Aggregate

	lines := []string{
		s.title.Render("Ledger"),
		s.header.Render(fmt.Sprintf("accounts: %d", len(accounts))),
		s.header.Render(fmt.Sprintf("total: %d requests, %s units, %s",
			aggregate.TotalRequests,
			domain.CompactUnits(aggregate.TotalUnits),
			domain.FormatCents(float64(aggregate.TotalUnits)*opts.CentsPerUnit))),
	}

	if len(accounts) == 0 {
		lines = append(lines, s.empty.Render("No accounts registered."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, account := range accounts {
		lines = append(lines, s.section.Render(renderAccount(account, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(account domain.AccountRecord, opts RenderOptions, s styles) string {
	privileged := account.ID == opts.Privileged

	title := s.account.Render(accountTitle(account))
	if privileged {
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, " ", s.privileged.Render("[admin]"))
	}

	parts := []string{
		title,
		balanceLine(account, privileged, s),
		s.detail.Render(fmt.Sprintf("usage: %d requests, %s units (%s)",
			account.RequestCount,
			domain.CompactUnits(account.UnitsConsumed),
			domain.FormatCents(float64(account.UnitsConsumed)*opts.CentsPerUnit))),
		s.meta.Render("last request: " + formatLastActivity(account.LastActivity, opts.Now)),
	}

	if account.HasDirective() {
		parts = append(parts, s.meta.Render(fmt.Sprintf("directive: %q", truncate(account.SystemDirective, 60))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func balanceLine(account domain.AccountRecord, privileged bool, s styles) string {
	label := s.key.Render("balance:")
	if privileged {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", s.detail.Render("unmetered"))
	}

	amount := s.detail.Render(fmt.Sprintf("%d units", account.Balance))
	if account.Balance <= 0 {
		amount = s.warning.Render(fmt.Sprintf("%d units [exhausted]", account.Balance))
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		label,
		" ",
		renderProgressBar(remainingPercent(account), 24, s),
		" ",
		amount,
	)
}

// remainingPercent is the share of everything the account was ever granted
// that it has not consumed yet.
func remainingPercent(account domain.AccountRecord) float64 {
	balance := account.Balance
	if balance < 0 {
		balance = 0
	}
	granted := balance + account.UnitsConsumed
	if granted <= 0 {
		return 0
	}
	return clampPercent(float64(balance) / float64(granted) * 100)
}

func renderProgressBar(leftPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(leftPercent) / 100.0))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatLastActivity(at, now time.Time) string {
	if at.IsZero() {
		return "never"
	}
	stamp := at.UTC().Format(domain.TimestampLayout)
	if now.IsZero() || at.After(now) {
		return stamp
	}

	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Minute:
		return stamp + " (just now)"
	case elapsed < time.Hour:
		return fmt.Sprintf("%s (%s ago)", stamp, plural(int(elapsed.Minutes()), "minute"))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%s (%s ago)", stamp, plural(int(elapsed.Hours()), "hour"))
	default:
		return fmt.Sprintf("%s (%s ago)", stamp, plural(int(elapsed.Hours()/24), "day"))
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func accountTitle(account domain.AccountRecord) string {
	name := strings.TrimSpace(account.DisplayName)
	if name == "" {
		name = "unnamed"
	}
	if handle := strings.TrimSpace(account.Handle); handle != "" {
		name += " @" + handle
	}
	return fmt.Sprintf("%s (%s)", name, account.ID)
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
