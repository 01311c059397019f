package agent

import (
	"encoding/json"
	"time"
)

// ItemType tags the union carried by TimelineRow.Item.
type ItemType string

const (
	ItemUserMessage      ItemType = "user_message"
	ItemAssistantMessage ItemType = "assistant_message"
	ItemReasoning        ItemType = "reasoning"
	ItemToolCall         ItemType = "tool_call"
	ItemTodo             ItemType = "todo"
	ItemError            ItemType = "error"
	ItemCompaction       ItemType = "compaction"
)

// ToolStatus is the lifecycle status of a tool_call item.
type ToolStatus string

const (
	ToolRunning   ToolStatus = "running"
	ToolCompleted ToolStatus = "completed"
	ToolFailed    ToolStatus = "failed"
	ToolCanceled  ToolStatus = "canceled"
)

// ToolDetailKind tags the tool_call.detail union.
type ToolDetailKind string

const (
	ToolDetailShell    ToolDetailKind = "shell"
	ToolDetailRead     ToolDetailKind = "read"
	ToolDetailEdit     ToolDetailKind = "edit"
	ToolDetailWrite    ToolDetailKind = "write"
	ToolDetailSearch   ToolDetailKind = "search"
	ToolDetailSubAgent ToolDetailKind = "sub_agent"
	ToolDetailPlain    ToolDetailKind = "plain_text"
	ToolDetailUnknown  ToolDetailKind = "unknown"
)

// ToolDetail is the tool_call.detail tagged variant.
type ToolDetail struct {
	Kind ToolDetailKind `json:"kind"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

// Attachment is an attachment carried by a user_message.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	URL      string `json:"url,omitempty"`
}

// TodoEntry is one line of a todo item.
type TodoEntry struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Item is the tagged-union payload of one TimelineRow. Exactly one of the
// type-specific fields is populated, selected by Type. Unknown payloads are
// not preserved: see Raw.
type Item struct {
	Type ItemType `json:"type"`

	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	CallID   string         `json:"callId,omitempty"`
	Name     string         `json:"name,omitempty"`
	Status   ToolStatus     `json:"status,omitempty"`
	Detail   *ToolDetail    `json:"detail,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
	Output   map[string]any `json:"output,omitempty"`
	ToolErr  string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	Todos []TodoEntry `json:"items,omitempty"`

	CompactionStatus  string `json:"compactionStatus,omitempty"`
	CompactionTrigger string `json:"compactionTrigger,omitempty"`

	// Raw is not set by any code in the daemon and is excluded from JSON
	// encoding, so an unrecognized item's original payload is not kept.
	Raw json.RawMessage `json:"-"`
}

// TimelineRow is one append-only entry of an agent's timeline.
type TimelineRow struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Item      Item      `json:"item"`
}

// PermissionRequest is a provider-originated pause asking the user to allow
// or deny an action.
type PermissionRequest struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	Options     []PermissionOption `json:"options,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// PermissionOption is one of a permission request's allow/deny choices.
type PermissionOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Behavior is the caller's decision on a PermissionRequest.
type Behavior string

const (
	BehaviorAllow Behavior = "allow"
	BehaviorDeny  Behavior = "deny"
)

// Resolution is the client's answer to a PermissionRequest.
type Resolution struct {
	Behavior Behavior `json:"behavior"`
	OptionID string   `json:"optionId,omitempty"`
	Message  string   `json:"message,omitempty"`
}
