// Package telegram implements the Telegram Bot API channel for relayctl.
//
// It provides:
//
//   - Inbound update conversion (messages, channel posts, button presses)
//     into the platform-agnostic message model, with media classification
//     and thread resolution
//   - Two delivery modes: long-polling (default) and webhook via the gateway
//   - A Platform adapter implementing relay.Platform (copyMessage, silent
//     pinChatMessage, index lookup with forward probing) and
//     control.Responder (replies, in-place edits, callback answers)
//   - Recording of every observed message in the message index
//
// The module registers itself as "channel.telegram" via init() and implements
// the module lifecycle: Configure → Provision → Validate → Start → Stop.
//
// No external Telegram library is used. The module talks to the Bot API
// via raw net/http + encoding/json.
package telegram
