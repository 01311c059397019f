package attention

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShouldNotifyInApp(t *testing.T) {
	tests := []struct {
		name    string
		client  ClientState
		clients []ClientState
		want    bool
	}{
		{
			name:   "suppressed when any client focused and visible on the agent",
			client: ClientState{Device: DeviceUnknown},
			clients: []ClientState{
				{Device: DeviceWeb, Visible: true, Focused: true},
				{Device: DeviceUnknown},
			},
			want: false,
		},
		{
			name:    "unidentified client notified absent a focused viewer",
			client:  ClientState{Device: DeviceUnknown},
			clients: []ClientState{{Device: DeviceUnknown}},
			want:    true,
		},
		{
			name:    "visible active client not focused on any agent is suppressed",
			client:  ClientState{Device: DeviceWeb, Visible: true, Focused: false},
			clients: []ClientState{{Device: DeviceWeb, Visible: true, Focused: false}},
			want:    false,
		},
		{
			name:   "stale mobile client suppressed in presence of active web client",
			client: ClientState{Device: DeviceMobile, Stale: true},
			clients: []ClientState{
				{Device: DeviceMobile, Stale: true},
				{Device: DeviceWeb, Stale: false},
			},
			want: false,
		},
		{
			name:    "stale mobile client notified absent any active web client",
			client:  ClientState{Device: DeviceMobile, Stale: true},
			clients: []ClientState{{Device: DeviceMobile, Stale: true}},
			want:    true,
		},
		{
			name:   "stale web client suppressed in presence of mobile client",
			client: ClientState{Device: DeviceWeb, Stale: true},
			clients: []ClientState{
				{Device: DeviceWeb, Stale: true},
				{Device: DeviceMobile, Stale: false},
			},
			want: false,
		},
		{
			name:   "stale web client suppressed in presence of unidentified client",
			client: ClientState{Device: DeviceWeb, Stale: true},
			clients: []ClientState{
				{Device: DeviceWeb, Stale: true},
				{Device: DeviceUnknown},
			},
			want: false,
		},
		{
			name:    "stale web client notified absent any mobile or unidentified client",
			client:  ClientState{Device: DeviceWeb, Stale: true},
			clients: []ClientState{{Device: DeviceWeb, Stale: true}},
			want:    true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ShouldNotifyInApp(tc.client, tc.clients))
		})
	}
}

func TestShouldNotifyPush(t *testing.T) {
	tests := []struct {
		name    string
		reason  Reason
		clients []ClientState
		want    bool
	}{
		{
			name:    "never pushes for an error reason",
			reason:  ReasonError,
			clients: []ClientState{},
			want:    false,
		},
		{
			name:    "suppressed when a visible active web client exists",
			reason:  ReasonDefault,
			clients: []ClientState{{Device: DeviceWeb, Visible: true, Stale: false}},
			want:    false,
		},
		{
			name:    "suppressed when a visible mobile client exists",
			reason:  ReasonDefault,
			clients: []ClientState{{Device: DeviceMobile, Visible: true, Stale: false}},
			want:    false,
		},
		{
			name:    "sent when no visible active web or mobile client exists",
			reason:  ReasonDefault,
			clients: []ClientState{{Device: DeviceWeb, Visible: false}, {Device: DeviceMobile, Stale: true}},
			want:    true,
		},
		{
			name:    "suppressed when a visible mobile client exists even with a stale heartbeat",
			reason:  ReasonDefault,
			clients: []ClientState{{Device: DeviceMobile, Visible: true, Stale: true}},
			want:    false,
		},
		{
			name:    "not suppressed by a stale visible web client",
			reason:  ReasonDefault,
			clients: []ClientState{{Device: DeviceWeb, Visible: true, Stale: true}},
			want:    true,
		},
		{
			name:    "sent with no connected clients at all",
			reason:  ReasonDefault,
			clients: nil,
			want:    true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ShouldNotifyPush(tc.reason, tc.clients))
		})
	}
}
