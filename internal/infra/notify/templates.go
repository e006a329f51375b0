package notify

import (
	"fmt"
	"html"
)

// Email bodies are deliberately plain: transactional security mail renders
// reliably without styling.

// VerificationCodeEmail builds the email for the 6-digit verification code flow.
func VerificationCodeEmail(name, code string) (subject, html string) {
	return "Verify your email address", fmt.Sprintf(
		`<p>Hi %s,</p><p>Your verification code is:</p><h2>%s</h2><p>The code expires in 10 minutes. If you did not create an account, ignore this email.</p>`,
		htmlName(name), code,
	)
}

// VerificationLinkEmail builds the email for the link-based verification flow.
func VerificationLinkEmail(name, url string) (subject, html string) {
	return "Verify your email address", fmt.Sprintf(
		`<p>Hi %s,</p><p>Confirm your email address by following this link:</p><p><a href="%s">%s</a></p><p>The link expires in 24 hours.</p>`,
		htmlName(name), url, url,
	)
}

// PasswordResetLinkEmail builds the email for the link-based reset flow.
func PasswordResetLinkEmail(name, url string) (subject, html string) {
	return "Reset your password", fmt.Sprintf(
		`<p>Hi %s,</p><p>We received a request to reset your password. Follow this link to choose a new one:</p><p><a href="%s">%s</a></p><p>The link expires in 1 hour. If you did not request a reset, ignore this email.</p>`,
		htmlName(name), url, url,
	)
}

// PasswordResetCodeEmail builds the email for the code-based reset flow.
func PasswordResetCodeEmail(name, code string) (subject, html string) {
	return "Reset your password", fmt.Sprintf(
		`<p>Hi %s,</p><p>Your password reset code is:</p><h2>%s</h2><p>The code expires in 15 minutes. If you did not request a reset, ignore this email.</p>`,
		htmlName(name), code,
	)
}

// MFAChallengeEmail builds the email carrying a second-factor login code.
func MFAChallengeEmail(name, code string) (subject, html string) {
	return "Your login code", fmt.Sprintf(
		`<p>Hi %s,</p><p>Your login verification code is:</p><h2>%s</h2><p>The code expires in 10 minutes. If you are not trying to sign in, change your password.</p>`,
		htmlName(name), code,
	)
}

func htmlName(name string) string {
	if name == "" {
		return "there"
	}
	return html.EscapeString(name)
}
