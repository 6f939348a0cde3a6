// Package mailer sends the user-facing notification emails. Delivery is
// best-effort everywhere: callers log failures and move on, an unreachable
// SMTP server must never fail an allocation.
package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"fincoach/internal/config"
	"fincoach/internal/shared"
)

type AllocationLine struct {
	GoalName string
	Amount   decimal.Decimal
	Percent  float64
}

type SpendingItem struct {
	Description string
	Amount      decimal.Decimal
	Category    string
}

type Mailer interface {
	SendIncomeAllocated(to, name string, total decimal.Decimal, lines []AllocationLine) error
	SendSpendingActivity(to, name string, items []SpendingItem, monthSpent, budget decimal.Decimal) error
	SendBudgetWarning(to, name string, spent, budget decimal.Decimal) error
	SendBudgetExceeded(to, name string, spent, budget decimal.Decimal) error
}

// New returns the SMTP mailer, or a no-op when SMTP is disabled.
func New(cfg *config.Config, logger *zap.Logger) Mailer {
	if !cfg.SMTP.Enabled || cfg.SMTP.Host == "" {
		logger.Info("smtp disabled, emails are dropped")
		return nopMailer{}
	}
	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password),
		from:   cfg.SMTP.From,
		logger: logger,
	}
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

func (m *smtpMailer) send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrEmailDispatch, err)
	}
	m.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func (m *smtpMailer) SendIncomeAllocated(to, name string, total decimal.Decimal, lines []AllocationLine) error {
	body, err := render(incomeAllocatedTmpl, map[string]any{
		"Name":  name,
		"Total": shared.FormatINR(total),
		"Lines": formatLines(lines),
	})
	if err != nil {
		return err
	}
	return m.send(to, fmt.Sprintf("Income of %s allocated to your goals", shared.FormatINR(total)), body)
}

func (m *smtpMailer) SendSpendingActivity(to, name string, items []SpendingItem, monthSpent, budget decimal.Decimal) error {
	body, err := render(spendingActivityTmpl, map[string]any{
		"Name":       name,
		"Items":      formatItems(items),
		"MonthSpent": shared.FormatINR(monthSpent),
		"Budget":     shared.FormatINR(budget),
	})
	if err != nil {
		return err
	}
	return m.send(to, "New spending activity on your account", body)
}

func (m *smtpMailer) SendBudgetWarning(to, name string, spent, budget decimal.Decimal) error {
	body, err := render(budgetWarningTmpl, map[string]any{
		"Name":   name,
		"Spent":  shared.FormatINR(spent),
		"Budget": shared.FormatINR(budget),
	})
	if err != nil {
		return err
	}
	return m.send(to, "You're close to your monthly budget", body)
}

func (m *smtpMailer) SendBudgetExceeded(to, name string, spent, budget decimal.Decimal) error {
	body, err := render(budgetExceededTmpl, map[string]any{
		"Name":   name,
		"Spent":  shared.FormatINR(spent),
		"Budget": shared.FormatINR(budget),
	})
	if err != nil {
		return err
	}
	return m.send(to, "Monthly budget exceeded", body)
}

type renderedLine struct {
	GoalName string
	Amount   string
	Percent  string
}

func formatLines(lines []AllocationLine) []renderedLine {
	out := make([]renderedLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, renderedLine{
			GoalName: l.GoalName,
			Amount:   shared.FormatINR(l.Amount),
			Percent:  fmt.Sprintf("%.1f%%", l.Percent),
		})
	}
	return out
}

type renderedItem struct {
	Description string
	Amount      string
	Category    string
}

func formatItems(items []SpendingItem) []renderedItem {
	out := make([]renderedItem, 0, len(items))
	for _, it := range items {
		out = append(out, renderedItem{
			Description: it.Description,
			Amount:      shared.FormatINR(it.Amount),
			Category:    it.Category,
		})
	}
	return out
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

var incomeAllocatedTmpl = template.Must(template.New("income_allocated").Parse(`
<h2>Hi {{.Name}},</h2>
<p>We received new income of <strong>{{.Total}}</strong> and put part of it to work on your goals:</p>
<table border="0" cellpadding="6">
{{range .Lines}}<tr><td>{{.GoalName}}</td><td>{{.Amount}}</td><td>{{.Percent}}</td></tr>
{{end}}</table>
<p>Keep it up!</p>`))

var spendingActivityTmpl = template.Must(template.New("spending_activity").Parse(`
<h2>Hi {{.Name}},</h2>
<p>New spending was detected on your connected accounts:</p>
<table border="0" cellpadding="6">
{{range .Items}}<tr><td>{{.Description}}</td><td>{{.Amount}}</td><td>{{.Category}}</td></tr>
{{end}}</table>
<p>This month you have spent {{.MonthSpent}} of your {{.Budget}} budget.</p>`))

var budgetWarningTmpl = template.Must(template.New("budget_warning").Parse(`
<h2>Hi {{.Name}},</h2>
<p>Heads up: you have spent <strong>{{.Spent}}</strong> of your <strong>{{.Budget}}</strong> monthly budget (over 90%).</p>
<p>Consider slowing down discretionary spending for the rest of the month.</p>`))

var budgetExceededTmpl = template.Must(template.New("budget_exceeded").Parse(`
<h2>Hi {{.Name}},</h2>
<p>You have exceeded your monthly budget: <strong>{{.Spent}}</strong> spent against <strong>{{.Budget}}</strong>.</p>
<p>New spending will keep being tracked; consider reviewing your recent transactions.</p>`))

// nopMailer drops everything; used in development and tests.
type nopMailer struct{}

func (nopMailer) SendIncomeAllocated(string, string, decimal.Decimal, []AllocationLine) error {
	return nil
}
func (nopMailer) SendSpendingActivity(string, string, []SpendingItem, decimal.Decimal, decimal.Decimal) error {
	return nil
}
func (nopMailer) SendBudgetWarning(string, string, decimal.Decimal, decimal.Decimal) error {
	return nil
}
func (nopMailer) SendBudgetExceeded(string, string, decimal.Decimal, decimal.Decimal) error {
	return nil
}

// NewNop is exposed for tests and wiring without SMTP.
func NewNop() Mailer { return nopMailer{} }
