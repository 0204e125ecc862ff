package control

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/relayctl/internal/relay"
	"github.com/flemzord/relayctl/pkg/message"
)

const (
	textDenied          = "Access denied. You are not authorized to use this bot."
	textOwnerOnly       = "Only the owner can manage authorized users."
	textOwnerRemoval    = "The owner cannot be removed."
	textSetupIncomplete = "Setup incomplete. Set a source and a destination first."
	textInvalidRange    = "Invalid range. The start ID must not exceed the end ID, and IDs start at 1."
	textRunInProgress   = "A forward run is already in progress. Use /stop to cancel it."
	textLiveOn          = "Live relay enabled. New source messages will be relayed as they arrive."
	textLiveOff         = "Live relay disabled."
	textStopRequested   = "Stop requested. A running forward halts before the next message."
	textSettingsPrompt  = "Choose which message types to relay:"
	textStart           = "Relay bot ready. Send /help for the list of commands."
)

const textHelp = `Commands:
/start - greeting
/help - this list
/adduser <user_id> - authorize a user (owner only)
/removeuser <user_id> - revoke a user (owner only)
/listusers - list authorized users (owner only)
/setdestination <chat_id>[/<topic_id>] - where messages go
/addsource <chat_id>[/<topic_id>] - where messages come from
/setting - toggle message type filters
/status - show the current configuration
/startlive - relay new messages as they arrive
/stoplive - stop relaying new messages
/forward <start_id>-<end_id> - relay a range of past messages
/stop - cancel a running forward`

func usage(cmd, args string) string {
	return fmt.Sprintf("Usage: /%s %s", cmd, args)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func check(b bool) string {
	if b {
		return "✅"
	}
	return "❌"
}

// describeRef renders a chat reference for status output.
func describeRef(ref message.ChatRef) string {
	switch {
	case ref.IsZero():
		return "Not set"
	case ref.HasThread():
		return fmt.Sprintf("%d (Topic: %d)", ref.ChatID, ref.ThreadID)
	default:
		return fmt.Sprintf("%d (Entire Chat)", ref.ChatID)
	}
}

func refConfirmation(what string, ref message.ChatRef) string {
	topic := "none, entire chat"
	if ref.HasThread() {
		topic = strconv.Itoa(ref.ThreadID)
	}
	return fmt.Sprintf("%s set.\nChat: %d\nTopic: %s", what, ref.ChatID, topic)
}

func filterSummary(f relay.Filters) string {
	parts := make([]string, 0, len(relay.CategoryOrder))
	for _, c := range relay.CategoryOrder {
		parts = append(parts, fmt.Sprintf("%s: %s", c.Label(), onOff(f.Enabled(c))))
	}
	return strings.Join(parts, ", ")
}

func enabledList(f relay.Filters) string {
	enabled := f.EnabledCategories()
	if len(enabled) == 0 {
		return "None"
	}
	labels := make([]string, len(enabled))
	for i, c := range enabled {
		labels[i] = c.Label()
	}
	return strings.Join(labels, ", ")
}

func launchText(rng relay.Range, f relay.Filters) string {
	return fmt.Sprintf("Forwarding messages %d to %d.\nFilters: %s", rng.Start, rng.End, enabledList(f))
}

func statusText(s relay.Snapshot) string {
	var b strings.Builder
	b.WriteString("Relay status\n\n")
	fmt.Fprintf(&b, "Source: %s\n", describeRef(s.Source))
	fmt.Fprintf(&b, "Destination: %s\n", describeRef(s.Destination))
	fmt.Fprintf(&b, "Live relay: %s\n", onOff(s.Live))
	fmt.Fprintf(&b, "Filters: %s\n", filterSummary(s.Filters))
	fmt.Fprintf(&b, "Authorized users: %d\n", s.Authorized)
	fmt.Fprintf(&b, "Cancel requested: %s\n", yesNo(s.CancelRequested))
	fmt.Fprintf(&b, "Forward running: %s", yesNo(s.Running))
	if s.LastRun != nil {
		fmt.Fprintf(&b, "\nLast run: %s", lastRunText(*s.LastRun))
	}
	return b.String()
}

func lastRunText(r relay.Result) string {
	outcome := "complete"
	if r.Aborted {
		outcome = "aborted"
	}
	return fmt.Sprintf("%s %s, forwarded %d out of %d processed, %d rate-limit pauses, %d errors, took %s",
		r.Range, outcome, r.Forwarded, r.Processed, r.RateLimited, r.Errors, r.Duration.Round(100*time.Millisecond))
}

func usersText(owner int64, ids []int64) string {
	var b strings.Builder
	b.WriteString("Authorized users:\n")
	for _, id := range ids {
		if id == owner {
			fmt.Fprintf(&b, "- %d (owner)\n", id)
			continue
		}
		fmt.Fprintf(&b, "- %d\n", id)
	}
	fmt.Fprintf(&b, "Total: %d", len(ids))
	return b.String()
}

func progressLine(p relay.Progress) string {
	return fmt.Sprintf("Progress: %.1f%% [%s] | Forwarded: %d out of %d processed", p.Percent(), p.Bar(), p.Forwarded, p.Processed)
}

func progressText(p relay.Progress) string {
	switch p.State {
	case relay.StateAborted:
		return "Run aborted. " + progressLine(p)
	case relay.StateComplete:
		return fmt.Sprintf("Run complete. Progress: 100%% [%s] | Forwarded: %d out of %d processed", p.Bar(), p.Forwarded, p.Processed)
	default:
		return progressLine(p)
	}
}

var textInitialProgress = "Progress: 0% [" + relay.Progress{Total: 1}.Bar() + "] | Forwarded: 0"

func settingsKeyboard(f relay.Filters) message.Keyboard {
	var kb message.Keyboard
	order := relay.CategoryOrder
	for i := 0; i < len(order); i += 2 {
		row := make([]message.Button, 0, 2)
		for _, c := range order[i:min(i+2, len(order))] {
			row = append(row, message.Button{
				Text: c.Label() + " " + check(f.Enabled(c)),
				Data: string(c),
			})
		}
		kb = append(kb, row)
	}
	return kb
}
