package notification

import (
	"testing"
)

func TestNewNotificationManager(t *testing.T) {
	nm := NewNotificationManager("")
	if nm == nil {
		t.Error("NewNotificationManager returned nil")
	}
	if nm.notifiers == nil {
		t.Error("notifiers map not initialized")
	}
	if nm.notificationRegistry == nil {
		t.Error("notificationRegistry map not initialized")
	}
}

func TestRegisterNotifier(t *testing.T) {
	nm := NewNotificationManager("")
	mockNotifier := &MockNotifier{}

	nm.RegisterNotifier(EmailSystem, mockNotifier)
	if n, exists := nm.notifiers[EmailSystem]; !exists {
		t.Error("Notifier not registered")
	} else if n != mockNotifier {
		t.Error("Wrong notifier registered")
	}

	newMockNotifier := &MockNotifier{}
	nm.RegisterNotifier(EmailSystem, newMockNotifier)
	if n := nm.notifiers[EmailSystem]; n != newMockNotifier {
		t.Error("Notifier not overwritten")
	}
}

func TestRegisterNotification(t *testing.T) {
	nm := NewNotificationManager("")

	tests := []struct {
		name        string
		noticeType  NoticeType
		system      NotificationSystem
		template    NoticeTemplate
		shouldError bool
	}{
		{
			name:        "Valid registration with both Text and Html",
			noticeType:  ExampleNotice,
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Example Email", Text: "This is an example email", Html: "<p>This is an example email</p>"},
			shouldError: false,
		},
		{
			name:        "Valid registration with Text only",
			noticeType:  ExampleNotice,
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Example Email", Text: "This is an example email"},
			shouldError: false,
		},
		{
			name:        "Empty notice type",
			noticeType:  "",
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Example Email", Text: "This is an example email"},
			shouldError: true,
		},
		{
			name:        "Empty system",
			noticeType:  ExampleNotice,
			system:      "",
			template:    NoticeTemplate{Subject: "Example Email", Text: "This is an example email"},
			shouldError: true,
		},
		{
			name:        "Empty subject",
			noticeType:  ExampleNotice,
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "", Text: "This is an example email"},
			shouldError: true,
		},
		{
			name:        "No content",
			noticeType:  ExampleNotice,
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Example Email", Text: "", Html: ""},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := nm.RegisterNotification(tt.noticeType, tt.system, tt.template)
			if tt.shouldError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if !tt.shouldError {
				if template, exists := nm.notificationRegistry[tt.noticeType][tt.system]; !exists {
					t.Error("Template not registered")
				} else if template.Subject != tt.template.Subject {
					t.Errorf("Wrong subject registered. Got %s, want %s", template.Subject, tt.template.Subject)
				}
			}
		})
	}
}

func TestSend(t *testing.T) {
	nm := NewNotificationManager("")
	mockEmailNotifier := &MockNotifier{}

	nm.RegisterNotifier(EmailSystem, mockEmailNotifier)

	err := nm.RegisterNotification(ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example Notice", Text: "This is an example notice"})
	if err != nil {
		t.Fatalf("Failed to register email notification: %v", err)
	}

	testData := NotificationData{
		To:      "user@example.com",
		Subject: "Test Subject",
		Body:    "Test Body",
	}

	err = nm.Send(ExampleNotice, testData)
	if err != nil {
		t.Errorf("Failed to send notification: %v", err)
	}

	if len(mockEmailNotifier.SentNotifications) != 1 {
		t.Error("Email notification not sent")
	} else {
		sent := mockEmailNotifier.SentNotifications[0]
		if sent.To != testData.To || sent.Subject != testData.Subject {
			t.Error("Email notification data mismatch")
		}
	}
}

func TestSendErrors(t *testing.T) {
	nm := NewNotificationManager("")

	err := nm.Send("unregistered", NotificationData{})
	if err == nil {
		t.Error("Expected error for unregistered notice type")
	}

	err = nm.RegisterNotification(ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example Notice", Text: "body"})
	if err != nil {
		t.Fatalf("Failed to register notification: %v", err)
	}

	err = nm.Send(ExampleNotice, NotificationData{})
	if err == nil {
		t.Error("Expected error for missing notifier")
	} else if err.Error() != "no notifier registered for system: email" {
		t.Errorf("Unexpected error message: %v", err)
	}
}

func TestSanitizeSubject(t *testing.T) {
	got := sanitizeSubject("Confirm your\r\nemail address\n")
	want := "Confirm youremail address"
	if got != want {
		t.Errorf("sanitizeSubject: got %q, want %q", got, want)
	}
}
