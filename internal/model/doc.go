// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Message: one turn in the conversation, sent by the user or the bot
//   - Conversation: ordered, append-only sequence of messages
//   - DisplayKind: how a bot answer is rendered (table, count, summary, text)
//   - Sender: who produced a message
//
// # Usage
//
//	conv := model.NewConversation()
//	conv.Append(model.NewUserMessage("how many orders shipped today?"))
//	conv.Append(model.NewCountMessage("There are 42 matching records.", 42))
//
// Messages are immutable once appended. The only exception is the
// Expanded flag, which the UI toggles to show a full table.
package model
