package models

// IntentKind is the action a user message asks for.
type IntentKind string

const (
	IntentAddTask        IntentKind = "add_task"
	IntentRemoveTask     IntentKind = "remove_task"
	IntentListTasks      IntentKind = "list_tasks"
	IntentUpdateTask     IntentKind = "update_task"
	IntentSetTimeZone    IntentKind = "set_timezone"
	IntentUpdateReminder IntentKind = "update_reminder"
	IntentHelp           IntentKind = "get_help"
	IntentUnknown        IntentKind = "unknown"
)

// Intent is the structured result of classifying a message. TimeValue is
// always a natural-language phrase, never a computed timestamp.
type Intent struct {
	Intent         IntentKind `json:"intent"`
	TaskContent    string     `json:"task_content,omitempty"`
	TaskIdentifier string     `json:"task_identifier,omitempty"`
	TimeValue      string     `json:"time_value,omitempty"`
	TimeType       string     `json:"time_type,omitempty"`
	ReminderOffset *int       `json:"reminder_offset,omitempty"`
	TimeZone       string     `json:"time_zone,omitempty"`
	TenseUsed      string     `json:"tense_used,omitempty"`
}
