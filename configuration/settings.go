package configuration

// EscalationSettings is the decoded shape of WorkflowConfiguration.EscalationSettings.
// Levels are only checked when escalation is enabled.
type EscalationSettings struct {
	Enabled bool              `json:"enabled"`
	Levels  []EscalationLevel `json:"levels"`
}

// EscalationLevel is one step of an escalation chain
type EscalationLevel struct {
	Level           int      `json:"level" validate:"gt=0"`
	TimeoutHours    int      `json:"timeoutHours" validate:"gt=0"`
	EscalateToUsers []string `json:"escalateToUsers,omitempty" validate:"dive,required"`
	EscalateToRoles []string `json:"escalateToRoles,omitempty" validate:"dive,required"`
	NotifyOriginal  bool     `json:"notifyOriginalApprover,omitempty"`
}

// hasTarget reports whether the level escalates to anyone
func (l EscalationLevel) hasTarget() bool {
	return len(l.EscalateToUsers) > 0 || len(l.EscalateToRoles) > 0
}

// NotificationSettings is the decoded shape of WorkflowConfiguration.NotificationSettings
type NotificationSettings struct {
	EmailEnabled   bool                  `json:"emailEnabled"`
	InAppEnabled   bool                  `json:"inAppEnabled"`
	SMSEnabled     bool                  `json:"smsEnabled"`
	WebhookEnabled bool                  `json:"webhookEnabled"`
	Events         []string              `json:"events,omitempty" validate:"dive,notification_event"`
	Schedule       *NotificationSchedule `json:"schedule,omitempty"`
}

// anyChannel reports whether at least one delivery channel is on
func (n NotificationSettings) anyChannel() bool {
	return n.EmailEnabled || n.InAppEnabled || n.SMSEnabled || n.WebhookEnabled
}

// NotificationSchedule restricts when notifications go out.
// Hours are 0-23, days are 1 (Monday) to 7 (Sunday).
type NotificationSchedule struct {
	QuietHoursStart *int  `json:"quietHoursStart,omitempty" validate:"omitempty,min=0,max=23"`
	QuietHoursEnd   *int  `json:"quietHoursEnd,omitempty" validate:"omitempty,min=0,max=23"`
	WorkingDays     []int `json:"workingDays,omitempty" validate:"dive,min=1,max=7"`
}

// notificationEvents is the closed set of event names a configuration may subscribe to
var notificationEvents = map[string]struct{}{
	"WorkflowStarted":     {},
	"WorkflowCompleted":   {},
	"WorkflowCancelled":   {},
	"ApprovalRequested":   {},
	"ApprovalGranted":     {},
	"ApprovalRejected":    {},
	"EscalationTriggered": {},
	"InfoRequested":       {},
	"DeadlineApproaching": {},
}
