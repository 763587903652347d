// Package mail builds the transactional messages of the identity flows and
// delivers them. The API enqueues; the worker sends over SMTP.
package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plannr/internal/models"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

func roleNoun(role models.Role) string {
	switch role {
	case models.RoleVendor:
		return "vendor"
	case models.RoleAdmin:
		return "admin"
	default:
		return "account"
	}
}

func VerificationCode(to string, role models.Role, code string, expiresAt time.Time) Message {
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())
	if minutes <= 0 {
		minutes = 10
	}
	return Message{
		To:      to,
		Subject: "Verify your Plannr " + roleNoun(role),
		Body: fmt.Sprintf(
			"Your verification code is %s.\n\nIt expires in %d minutes. If you did not sign up for Plannr you can ignore this email.\n",
			code, minutes,
		),
	}
}

func PasswordResetCode(to string, code string, expiresAt time.Time) Message {
	return Message{
		To:      to,
		Subject: "Reset your Plannr password",
		Body: fmt.Sprintf(
			"Use the code %s to reset your password. The code is valid until %s.\n",
			code, expiresAt.UTC().Format(time.RFC1123),
		),
	}
}

func Welcome(account models.Account) Message {
	name := strings.TrimSpace(account.FullName)
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf("Hi %s,\n\nYour Plannr %s is verified and ready to use.\n", name, roleNoun(account.Role))
	if account.Role == models.RoleVendor && !account.IsApproved {
		body += "\nOur team reviews every vendor. You will hear from us once your listing is approved.\n"
	}
	return Message{To: account.Email, Subject: "Welcome to Plannr", Body: body}
}

func ApprovalChanged(account models.Account, approved bool) Message {
	if approved {
		return Message{
			To:      account.Email,
			Subject: "Your vendor account is approved",
			Body:    fmt.Sprintf("Good news, %s is now visible to planners on Plannr.\n", displayBusiness(account)),
		}
	}
	return Message{
		To:      account.Email,
		Subject: "Your vendor account was suspended",
		Body:    fmt.Sprintf("%s is no longer listed on Plannr. Contact support for details.\n", displayBusiness(account)),
	}
}

func PasswordChanged(to string) Message {
	return Message{
		To:      to,
		Subject: "Your Plannr password was changed",
		Body:    "Your password was just reset. If this was not you, contact support immediately.\n",
	}
}

func displayBusiness(account models.Account) string {
	if account.BusinessName != "" {
		return account.BusinessName
	}
	return account.Email
}
