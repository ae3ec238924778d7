package mail

import "fmt"

// VerificationMessage builds the account-verification email. The link must be
// the full /users/email_verify URL including the signed token.
func VerificationMessage(to, username, link string) Message {
	body := fmt.Sprintf(`Hey %s!<br><br>
Thank you for creating an account at Mingle.<br>
Click on the link to verify your account: %s<br><br>
Team Mingle`, username, link)
	return Message{
		To:      to,
		Subject: "Verify your account - Mingle",
		Body:    body,
	}
}

// PasswordResetMessage builds the password-reset email.
func PasswordResetMessage(to, username, link string) Message {
	body := fmt.Sprintf(`Hey %s!<br><br>
A password reset was requested for your Mingle account.<br>
Click on the link to choose a new password: %s<br>
If you did not request this, you can ignore this e-mail.<br><br>
Team Mingle`, username, link)
	return Message{
		To:      to,
		Subject: "Reset your password - Mingle",
		Body:    body,
	}
}
