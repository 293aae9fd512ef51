// Package notification provides outbound notice delivery for simple-emailauth.
//
// A NotificationManager holds a registry of notice templates keyed by notice
// type and delivery system, plus the Notifier implementations that perform the
// actual sending. Email delivery uses SMTP via wneessen/go-mail; tests use
// MockNotifier.
//
// # Basic Usage
//
//	nm, err := notification.NewNotificationManagerWithOptions(
//		"https://example.com",
//		notification.WithSMTP(smtpConfig),
//		notification.WithDefaultTemplates(),
//	)
//
//	err = nm.Send(notification.EmailVerificationNotice, notification.NotificationData{
//		To: "user@example.com",
//		Data: map[string]string{
//			"VerificationKey": key,
//			"ExpirationDays":  "3",
//			"SiteName":        "example.com",
//			"FirstName":       "Ann",
//			"FirstEmail":      "true",
//		},
//	})
//
// Email subjects never contain line breaks; the email notifier strips them
// before sending.
package notification
