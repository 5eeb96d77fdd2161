package mailer

import "fmt"

// welcomeHTML renders the account-created email with inline styles for
// maximum client compatibility.
func welcomeHTML(name, link string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1.0" />
	<title>Welcome</title>
</head>
<body style="margin: 0; padding: 0; font-family: Helvetica, Arial, sans-serif; background-color: #f4f6f8;">
	<table border="0" cellpadding="0" cellspacing="0" width="100%%" style="border-collapse: collapse;">
		<tr>
			<td style="padding: 40px 0;">
				<table align="center" border="0" cellpadding="0" cellspacing="0" width="600" style="border-collapse: collapse; background-color: #1f6feb; border-radius: 8px 8px 0 0;">
					<tr>
						<td align="center" style="padding: 28px 0; color: #ffffff;">
							<h1 style="margin: 0; font-size: 24px;">Smart Traffic Console</h1>
						</td>
					</tr>
				</table>
				<table align="center" border="0" cellpadding="0" cellspacing="0" width="600" style="border-collapse: collapse; background-color: #ffffff;">
					<tr>
						<td style="padding: 36px 30px; color: #24292f; font-size: 15px; line-height: 1.6;">
							<p style="margin-top: 0;">Hello <strong>%s</strong>,</p>
							<p>An account has been created for you in the traffic administration console. Set your password with the button below before your first sign-in.</p>
							<table align="center" border="0" cellpadding="0" cellspacing="0" style="margin: 24px auto;">
								<tr>
									<td align="center" style="background-color: #1f6feb; border-radius: 6px;">
										<a href="%s" target="_blank" style="display: inline-block; color: #ffffff; font-size: 15px; font-weight: bold; text-decoration: none; padding: 12px 28px;">Set your password</a>
									</td>
								</tr>
							</table>
							<p>If the button does not work, copy this link into your browser:</p>
							<p style="word-break: break-all; color: #1f6feb;">%s</p>
							<p style="margin-bottom: 0;">If you were not expecting this account, you can ignore this message.</p>
						</td>
					</tr>
				</table>
				<table align="center" border="0" cellpadding="0" cellspacing="0" width="600" style="border-collapse: collapse; background-color: #eef1f5; border-radius: 0 0 8px 8px;">
					<tr>
						<td align="center" style="padding: 18px; color: #6e7781; font-size: 12px;">
							<p style="margin: 0;">This mailbox is not monitored. Please do not reply.</p>
						</td>
					</tr>
				</table>
			</td>
		</tr>
	</table>
</body>
</html>`, name, link, link)
}

// passwordResetHTML renders the password reset email.
func passwordResetHTML(name, link string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1.0" />
	<title>Password reset</title>
</head>
<body style="margin: 0; padding: 0; font-family: Helvetica, Arial, sans-serif; background-color: #f4f6f8;">
	<table border="0" cellpadding="0" cellspacing="0" width="100%%" style="border-collapse: collapse;">
		<tr>
			<td style="padding: 40px 0;">
				<table align="center" border="0" cellpadding="0" cellspacing="0" width="600" style="border-collapse: collapse; background-color: #1f6feb; border-radius: 8px 8px 0 0;">
					<tr>
						<td align="center" style="padding: 28px 0; color: #ffffff;">
							<h1 style="margin: 0; font-size: 24px;">Password reset</h1>
						</td>
					</tr>
				</table>
				<table align="center" border="0" cellpadding="0" cellspacing="0" width="600" style="border-collapse: collapse; background-color: #ffffff;">
					<tr>
						<td style="padding: 36px 30px; color: #24292f; font-size: 15px; line-height: 1.6;">
							<p style="margin-top: 0;">Hello <strong>%s</strong>,</p>
							<p>A password reset was requested for your traffic console account. Choose a new password with the button below.</p>
							<table align="center" border="0" cellpadding="0" cellspacing="0" style="margin: 24px auto;">
								<tr>
									<td align="center" style="background-color: #1f6feb; border-radius: 6px;">
										<a href="%s" target="_blank" style="display: inline-block; color: #ffffff; font-size: 15px; font-weight: bold; text-decoration: none; padding: 12px 28px;">Choose a new password</a>
									</td>
								</tr>
							</table>
							<p>If the button does not work, copy this link into your browser:</p>
							<p style="word-break: break-all; color: #1f6feb;">%s</p>
							<p style="margin-bottom: 0;">If you did not request this reset, contact your administrator.</p>
						</td>
					</tr>
				</table>
				<table align="center" border="0" cellpadding="0" cellspacing="0" width="600" style="border-collapse: collapse; background-color: #eef1f5; border-radius: 0 0 8px 8px;">
					<tr>
						<td align="center" style="padding: 18px; color: #6e7781; font-size: 12px;">
							<p style="margin: 0;">This mailbox is not monitored. Please do not reply.</p>
						</td>
					</tr>
				</table>
			</td>
		</tr>
	</table>
</body>
</html>`, name, link, link)
}
