// Package attention decides, per client, whether an agent event should
// surface as an in-app notification and, separately, whether it should
// trigger a push notification. Both decisions are pure functions of the
// event reason and the set of current client states, so the policy is
// exercised entirely through table-driven tests rather than integration
// against a live session.
package attention

// DeviceType classifies a client's presence for the in-app suppression
// rules. Unknown covers clients that haven't reported a device type yet.
type DeviceType string

const (
	DeviceUnknown DeviceType = ""
	DeviceWeb     DeviceType = "web"
	DeviceMobile  DeviceType = "mobile"
)

// Reason is why the event fired; only "error" changes the push rule.
type Reason string

const (
	ReasonError   Reason = "error"
	ReasonDefault Reason = ""
)

// ClientState is the presence snapshot of one connected client at the
// moment an event fires.
type ClientState struct {
	Device     DeviceType
	Visible    bool
	Focused    bool // focused on the agent the event belongs to
	Stale      bool // heartbeat older than the presence window
}

// ShouldNotifyInApp reports whether client should receive an in-app
// notification for an event, given every client currently connected
// (clients includes client itself). The event's reason plays no part.
func ShouldNotifyInApp(client ClientState, clients []ClientState) bool {
	if anyFocusedVisible(clients) {
		return false
	}

	if client.Device == DeviceUnknown {
		return true
	}

	if !client.Stale {
		if client.Visible && !client.Focused {
			return false
		}
		return true
	}

	switch client.Device {
	case DeviceMobile:
		return !anyActiveWeb(clients)
	case DeviceWeb:
		return !anyActiveOrUnknown(clients)
	default:
		return true
	}
}

// ShouldNotifyPush reports whether a push notification should be sent for
// an event with the given reason, given every client currently connected.
func ShouldNotifyPush(reason Reason, clients []ClientState) bool {
	if reason == ReasonError {
		return false
	}
	for _, c := range clients {
		if c.Device == DeviceWeb && c.Visible && !c.Stale {
			return false
		}
		if c.Device == DeviceMobile && c.Visible {
			return false
		}
	}
	return true
}

func anyFocusedVisible(clients []ClientState) bool {
	for _, c := range clients {
		if c.Visible && c.Focused {
			return true
		}
	}
	return false
}

func anyActiveWeb(clients []ClientState) bool {
	for _, c := range clients {
		if c.Device == DeviceWeb && !c.Stale {
			return true
		}
	}
	return false
}

func anyActiveOrUnknown(clients []ClientState) bool {
	for _, c := range clients {
		if c.Stale {
			continue
		}
		if c.Device == DeviceMobile || c.Device == DeviceUnknown {
			return true
		}
	}
	return false
}
