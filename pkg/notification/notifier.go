package notification

// NotificationData carries the recipient and per-message template values.
type NotificationData struct {
	To      string            // Recipient identifier (e.g., email address)
	Subject string            // Optional: overrides the template subject
	Body    string            // Optional: pre-rendered content
	Data    map[string]string // Template values (verification key, site name, ...)
}

// NoticeTemplate holds the subject and body templates for one notice.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
