// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/querychat/internal/config"
	"github.com/jeranaias/querychat/internal/export"
	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/query"
	"github.com/jeranaias/querychat/internal/storage"
	"github.com/jeranaias/querychat/internal/ui/styles"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeAsker answers every question with a fixed body.
type fakeAsker struct {
	body  string
	err   error
	calls []query.Request
}

func (f *fakeAsker) Ask(ctx context.Context, req query.Request) (*query.Response, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return query.DecodeResponse([]byte(f.body))
}

// ordersBody builds a table answer with n rows.
func ordersBody(n int) string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = fmt.Sprintf(`{"order_id":%d,"customer":"Customer %d","total":%d.5}`, i+1, i+1, (i+1)*10)
	}
	return `{"data":[` + strings.Join(rows, ",") + `],"query":"SELECT order_id, customer, total FROM orders"}`
}

func newTestModel(t *testing.T, asker Asker) (Model, storage.Store) {
	t.Helper()

	store, err := storage.NewStore(storage.Options{Backend: storage.BackendFile, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.UI.TablePreviewRows = 5
	cfg.Export.OutputDir = t.TempDir()

	m := New(styles.NewTheme(styles.ModeDark), Options{
		Client:   asker,
		Store:    store,
		Config:   cfg,
		Endpoint: "http://127.0.0.1:8787/query",
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model), store
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

// ask submits a question and delivers the fake answer.
func ask(t *testing.T, m Model, asker *fakeAsker, question string) Model {
	t.Helper()
	m.input.SetValue(question)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.IsWaiting() {
		t.Fatalf("expected waiting state after submitting %q", question)
	}
	resp, err := asker.Ask(context.Background(), query.Request{Query: question})
	m, _ = update(t, m, AnswerMsg{RequestID: m.requestID, Response: resp, Err: err})
	return m
}

func loadStored(t *testing.T, store storage.Store) *model.Conversation {
	t.Helper()
	conv, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return conv
}

// =============================================================================
// SUBMISSION TESTS
// =============================================================================

func TestSubmit_PersistsUserMessageImmediately(t *testing.T) {
	asker := &fakeAsker{body: `{"count":3}`}
	m, store := newTestModel(t, asker)

	m.input.SetValue("  how many orders?  ")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if cmd == nil {
		t.Fatal("expected a command batch for the request")
	}
	if !m.IsWaiting() {
		t.Error("expected waiting state")
	}
	if m.input.Value() != "" {
		t.Errorf("input not reset: %q", m.input.Value())
	}

	stored := loadStored(t, store)
	if stored.Len() != 1 || stored.Messages[0].Text != "how many orders?" {
		t.Fatalf("stored = %+v, want the trimmed user question", stored.Messages)
	}
	if stored.Messages[0].Sender != model.SenderUser {
		t.Errorf("sender = %q", stored.Messages[0].Sender)
	}
}

func TestSubmit_EmptyInputIgnored(t *testing.T) {
	m, _ := newTestModel(t, &fakeAsker{})
	m.input.SetValue("   ")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || m.IsWaiting() || !m.Conversation().IsEmpty() {
		t.Error("blank input should not start a request")
	}
}

func TestSubmit_WhileWaiting(t *testing.T) {
	m, _ := newTestModel(t, &fakeAsker{})
	m.input.SetValue("first")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m.input.SetValue("second")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.Conversation().Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Conversation().Len())
	}
	if !strings.Contains(m.Status(), "waiting") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestAskCmd_SendsConversationID(t *testing.T) {
	asker := &fakeAsker{body: `{"message":"hi"}`}
	msg := askCmd(context.Background(), asker, 7, query.Request{Query: "hello", ConversationID: "conv_1"})()

	answer, ok := msg.(AnswerMsg)
	if !ok {
		t.Fatalf("got %T, want AnswerMsg", msg)
	}
	if answer.RequestID != 7 || answer.Err != nil || answer.Response == nil {
		t.Errorf("answer = %+v", answer)
	}
	if len(asker.calls) != 1 || asker.calls[0].ConversationID != "conv_1" {
		t.Errorf("calls = %+v", asker.calls)
	}
}

func TestAskCmd_NoClient(t *testing.T) {
	msg := askCmd(context.Background(), nil, 1, query.Request{Query: "x"})().(AnswerMsg)
	if !errors.Is(msg.Err, query.ErrNotConfigured) {
		t.Errorf("Err = %v, want ErrNotConfigured", msg.Err)
	}
}

// =============================================================================
// ANSWER TESTS
// =============================================================================

func TestHandleAnswer_Kinds(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind model.DisplayKind
	}{
		{"table", ordersBody(3), model.KindTable},
		{"count", `{"count":1500}`, model.KindCount},
		{"summary", `{"summary":"Revenue grew **12%**."}`, model.KindSummary},
		{"text", `{"message":"Hello there."}`, model.KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asker := &fakeAsker{body: tt.body}
			m, store := newTestModel(t, asker)
			m = ask(t, m, asker, "question")

			if m.IsWaiting() {
				t.Error("still waiting after the answer")
			}
			last := m.Conversation().Last()
			if last.Sender != model.SenderBot || last.Kind != tt.kind {
				t.Errorf("last = %s/%s, want bot/%s", last.Sender, last.Kind, tt.kind)
			}
			if got := loadStored(t, store).Len(); got != 2 {
				t.Errorf("stored %d messages, want 2", got)
			}
		})
	}
}

func TestHandleAnswer_Error(t *testing.T) {
	asker := &fakeAsker{err: &query.BackendError{Status: 500, Message: "boom"}}
	m, _ := newTestModel(t, asker)
	m = ask(t, m, asker, "fail please")

	last := m.Conversation().Last()
	if !last.IsError {
		t.Fatal("expected an error message")
	}
	if !strings.Contains(last.Text, "boom") {
		t.Errorf("Text = %q", last.Text)
	}
}

func TestHandleAnswer_StaleIgnored(t *testing.T) {
	m, _ := newTestModel(t, &fakeAsker{})
	m.input.SetValue("question")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m, _ = update(t, m, AnswerMsg{RequestID: m.requestID - 1, Err: errors.New("old")})
	if !m.IsWaiting() || m.Conversation().Len() != 1 {
		t.Error("stale answer should be dropped")
	}
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestHistoryLoaded_Restores(t *testing.T) {
	m, _ := newTestModel(t, &fakeAsker{})

	stored := model.NewConversation()
	stored.Append(model.NewUserMessage("old question"))
	stored.Append(model.NewBotMessage("old answer"))

	m, _ = update(t, m, HistoryLoadedMsg{Conversation: stored})
	if m.Conversation().Len() != 2 || m.Conversation().ID != stored.ID {
		t.Errorf("conversation = %d messages, id %s", m.Conversation().Len(), m.Conversation().ID)
	}
}

func TestHistoryLoaded_MergesLateLoad(t *testing.T) {
	m, store := newTestModel(t, &fakeAsker{})
	m.input.SetValue("new question")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	stored := model.NewConversation()
	stored.Append(model.NewUserMessage("old question"))
	stored.Append(model.NewBotMessage("old answer"))

	m, _ = update(t, m, HistoryLoadedMsg{Conversation: stored})

	conv := m.Conversation()
	if conv.Len() != 3 {
		t.Fatalf("Len = %d, want 3", conv.Len())
	}
	if conv.Messages[0].Text != "old question" || conv.Messages[2].Text != "new question" {
		t.Errorf("order = %q, %q, %q", conv.Messages[0].Text, conv.Messages[1].Text, conv.Messages[2].Text)
	}
	if got := loadStored(t, store).Len(); got != 3 {
		t.Errorf("stored %d messages, want 3", got)
	}
}

func TestHistoryLoaded_ExternalReplaces(t *testing.T) {
	m, _ := newTestModel(t, &fakeAsker{})
	m.input.SetValue("local question")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m, _ = update(t, m, HistoryLoadedMsg{Conversation: model.NewConversation(), External: true})
	if !m.Conversation().IsEmpty() {
		t.Errorf("Len = %d, want 0 after external clear", m.Conversation().Len())
	}
	if m.Status() != "History reloaded" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestHistoryLoaded_Error(t *testing.T) {
	m, _ := newTestModel(t, &fakeAsker{})
	m, _ = update(t, m, HistoryLoadedMsg{Err: errors.New("disk on fire")})
	if !m.statusError || !strings.Contains(m.Status(), "disk on fire") {
		t.Errorf("status = %q (error %v)", m.Status(), m.statusError)
	}
}

func TestLoadHistoryCmd(t *testing.T) {
	if loadHistoryCmd(nil, false) != nil {
		t.Error("expected nil command without a store")
	}

	_, store := newTestModel(t, &fakeAsker{})
	conv := model.NewConversation()
	conv.Append(model.NewUserMessage("saved"))
	if err := store.Save(context.Background(), conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	msg := loadHistoryCmd(store, true)().(HistoryLoadedMsg)
	if msg.Err != nil || msg.Conversation.Len() != 1 || !msg.External {
		t.Errorf("msg = %+v", msg)
	}
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		name  string
		args  []string
	}{
		{"/help", "help", nil},
		{"/EXPORT csv", "export", []string{"csv"}},
		{"/open 3 customer name", "open", []string{"3", "customer", "name"}},
		{"   ", "", nil},
	}
	for _, tt := range tests {
		name, args := parseCommand(tt.input)
		if name != tt.name || len(args) != len(tt.args) {
			t.Errorf("parseCommand(%q) = %q %v", tt.input, name, args)
			continue
		}
		for i := range args {
			if args[i] != tt.args[i] {
				t.Errorf("parseCommand(%q) args = %v", tt.input, args)
			}
		}
	}
}

func runCommand(t *testing.T, m Model, line string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(line)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestCommand_Unknown(t *testing.T) {
	m, _ := newTestModel(t, &fakeAsker{})
	m, _ = runCommand(t, m, "/frobnicate")
	if !strings.Contains(m.Status(), "Unknown command /frobnicate") {
		t.Errorf("status = %q", m.Status())
	}
	if m.Conversation().Len() != 0 {
		t.Error("commands must not be sent as questions")
	}
}

func TestCommand_Help(t *testing.T) {
	m, _ := newTestModel(t, &fakeAsker{})
	m, _ = runCommand(t, m, "/help")
	if m.panel != panelHelp || !strings.Contains(m.panelBody, "/expand [n]") {
		t.Errorf("panel = %v body = %q", m.panel, m.panelBody)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.panel != panelNone {
		t.Error("Esc should close the panel")
	}
}

func TestCommand_ExpandToggles(t *testing.T) {
	asker := &fakeAsker{body: ordersBody(12)}
	m, store := newTestModel(t, asker)
	m = ask(t, m, asker, "list orders")

	m, _ = runCommand(t, m, "/expand")
	if !m.Conversation().LastTable().Expanded {
		t.Fatal("table not expanded")
	}
	if !loadStored(t, store).Messages[1].Expanded {
		t.Error("expanded state not persisted")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlE})
	if m.Conversation().LastTable().Expanded {
		t.Error("Ctrl+E should collapse the table")
	}
}

func TestCommand_ExpandByPosition(t *testing.T) {
	asker := &fakeAsker{body: ordersBody(12)}
	m, _ := newTestModel(t, asker)
	m = ask(t, m, asker, "list orders")

	m, _ = runCommand(t, m, "/expand #1")
	if !strings.Contains(m.Status(), "No table") {
		t.Errorf("status = %q, want a no-table error for a user message", m.Status())
	}

	m, _ = runCommand(t, m, "/expand 2")
	if !m.Conversation().Get(2).Expanded {
		t.Error("message #2 not expanded")
	}

	m, _ = runCommand(t, m, "/expand 9")
	if !strings.Contains(m.Status(), "no message #9") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestCommand_Clear(t *testing.T) {
	asker := &fakeAsker{body: `{"count":2}`}
	m, store := newTestModel(t, asker)
	m = ask(t, m, asker, "how many")

	m, _ = runCommand(t, m, "/clear")
	if !m.Conversation().IsEmpty() {
		t.Error("conversation not cleared")
	}
	if !loadStored(t, store).IsEmpty() {
		t.Error("stored history not cleared")
	}
}

func TestCommand_OpenShowsDetail(t *testing.T) {
	asker := &fakeAsker{body: ordersBody(3)}
	m, _ := newTestModel(t, asker)
	m = ask(t, m, asker, "list orders")

	m, _ = runCommand(t, m, "/open 2 customer")
	if m.panel != panelDetail {
		t.Fatalf("panel = %v, want detail", m.panel)
	}
	if !strings.Contains(m.panelBody, "Customer 2") || !strings.Contains(m.panelTitle, "Row 2") {
		t.Errorf("title %q body %q", m.panelTitle, m.panelBody)
	}

	m, _ = runCommand(t, m, "/open 9")
	if !strings.Contains(m.Status(), "row out of range") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestCommand_OpenFollowsTemplate(t *testing.T) {
	var opened string
	prev := openURL
	openURL = func(u string) error { opened = u; return nil }
	t.Cleanup(func() { openURL = prev })

	asker := &fakeAsker{body: ordersBody(3)}
	m, _ := newTestModel(t, asker)
	m.cfg.UI.DetailURLTemplate = "https://shop.example.com/orders/{order_id}"
	m = ask(t, m, asker, "list orders")

	m, cmd := runCommand(t, m, "/open 3")
	if cmd == nil {
		t.Fatal("expected an open command")
	}
	msg := cmd().(OpenCompleteMsg)
	if msg.Err != nil || opened != "https://shop.example.com/orders/3" {
		t.Errorf("opened %q, err %v", opened, msg.Err)
	}

	m, _ = update(t, m, msg)
	if !strings.HasPrefix(m.Status(), "Opened ") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestCommand_Copy(t *testing.T) {
	var copied string
	prev := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { writeClipboard = prev })

	asker := &fakeAsker{body: ordersBody(2)}
	m, _ := newTestModel(t, asker)

	m, _ = runCommand(t, m, "/copy")
	if !strings.Contains(m.Status(), "Nothing to copy") {
		t.Errorf("status = %q", m.Status())
	}

	m = ask(t, m, asker, "list orders")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	want := "Order ID\tCustomer\tTotal\n1\tCustomer 1\t10.5\n2\tCustomer 2\t20.5"
	if copied != want {
		t.Errorf("copied = %q, want %q", copied, want)
	}
}

func TestCommand_Query(t *testing.T) {
	asker := &fakeAsker{body: ordersBody(2)}
	m, _ := newTestModel(t, asker)

	m, _ = runCommand(t, m, "/query")
	if !strings.Contains(m.Status(), "No generated query") {
		t.Errorf("status = %q", m.Status())
	}

	m = ask(t, m, asker, "list orders")
	m, _ = runCommand(t, m, "/query")
	if m.panel != panelDetail || !strings.Contains(m.panelBody, "SELECT") {
		t.Errorf("panel body = %q", m.panelBody)
	}
}

func TestCommand_ExportNeedsTable(t *testing.T) {
	asker := &fakeAsker{body: `{"count":4}`}
	m, _ := newTestModel(t, asker)

	m, _ = runCommand(t, m, "/export")
	if !strings.Contains(m.Status(), "Nothing to export") {
		t.Errorf("status = %q", m.Status())
	}

	m = ask(t, m, asker, "how many")
	m, _ = runCommand(t, m, "/export csv")
	if !strings.Contains(m.Status(), "No table result") {
		t.Errorf("status = %q", m.Status())
	}

	m, _ = runCommand(t, m, "/export pdf")
	if !strings.Contains(m.Status(), "Unknown export format") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestExportCmd_WritesFile(t *testing.T) {
	asker := &fakeAsker{body: ordersBody(4)}
	m, _ := newTestModel(t, asker)
	m = ask(t, m, asker, "list orders")

	opts := export.DefaultOptions()
	opts.OutputDir = t.TempDir()
	exp, err := export.ForFormat("csv", opts)
	if err != nil {
		t.Fatalf("ForFormat failed: %v", err)
	}

	msg := exportCmd(m.Conversation().Clone(), exp, opts, "csv")().(ExportCompleteMsg)
	if msg.Err != nil {
		t.Fatalf("export failed: %v", msg.Err)
	}
	data, err := os.ReadFile(msg.Path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "Customer 4") {
		t.Errorf("csv = %q", data)
	}

	m, _ = update(t, m, msg)
	if !strings.HasPrefix(m.Status(), "Exported to ") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestStatusClear(t *testing.T) {
	m, _ := newTestModel(t, &fakeAsker{})
	m.setStatus("first", false)
	seq := m.statusSeq
	m.setStatus("second", false)

	m, _ = update(t, m, StatusClearMsg{Seq: seq})
	if m.Status() != "second" {
		t.Errorf("an old clear removed a newer status: %q", m.Status())
	}
	m, _ = update(t, m, StatusClearMsg{Seq: m.statusSeq})
	if m.Status() != "" {
		t.Errorf("status = %q, want empty", m.Status())
	}
}

// =============================================================================
// RENDERING TESTS
// =============================================================================

func TestRender_TablePreviewFooter(t *testing.T) {
	asker := &fakeAsker{body: ordersBody(12)}
	m, _ := newTestModel(t, asker)
	m = ask(t, m, asker, "list orders")

	out := m.renderMessages()
	if !strings.Contains(out, "Showing 5 of 12 rows.") {
		t.Errorf("collapsed footer missing:\n%s", out)
	}
	if strings.Contains(out, "Customer 6") {
		t.Error("collapsed table shows rows past the preview")
	}

	m.Conversation().LastTable().Expanded = true
	out = m.renderMessages()
	if !strings.Contains(out, "Showing all 12 rows.") || !strings.Contains(out, "Customer 12") {
		t.Errorf("expanded table incomplete:\n%s", out)
	}
}

func TestRender_CountBadge(t *testing.T) {
	asker := &fakeAsker{body: `{"count":1500}`}
	m, _ := newTestModel(t, asker)
	m = ask(t, m, asker, "how many")

	if out := m.renderMessages(); !strings.Contains(out, "1,500") {
		t.Errorf("count badge missing:\n%s", out)
	}
}

func TestRender_WelcomeAndPositions(t *testing.T) {
	asker := &fakeAsker{body: `{"message":"Hello there."}`}
	m, _ := newTestModel(t, asker)

	if out := m.renderMessages(); !strings.Contains(out, "/help") {
		t.Errorf("welcome missing:\n%s", out)
	}

	m = ask(t, m, asker, "hi")
	out := m.renderMessages()
	for _, want := range []string{"You", "Assistant", "#1", "#2", "Hello there."} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered messages missing %q:\n%s", want, out)
		}
	}
}

func TestRender_View(t *testing.T) {
	m, _ := newTestModel(t, &fakeAsker{})
	view := m.View()
	if !strings.Contains(view, "querychat") || !strings.Contains(view, "127.0.0.1:8787") {
		t.Errorf("header missing:\n%s", view)
	}

	var zero Model
	if zero.View() != "Loading..." {
		t.Error("unsized view should show the loading text")
	}
}

func TestTableFooter(t *testing.T) {
	tests := []struct {
		total, shown int
		expanded     bool
		want         string
	}{
		{25, 10, false, "Showing 10 of 25 rows. Ctrl+E or /expand to show all."},
		{25, 25, true, "Showing all 25 rows. Ctrl+E to collapse."},
		{3, 3, false, "Showing all 3 rows."},
	}
	for _, tt := range tests {
		if got := tableFooter(tt.total, tt.shown, tt.expanded); got != tt.want {
			t.Errorf("tableFooter(%d, %d, %v) = %q, want %q", tt.total, tt.shown, tt.expanded, got, tt.want)
		}
	}
}

func TestHighlightQuery(t *testing.T) {
	r := newRenderer(styles.NewTheme(styles.ModeDark), 0)
	if r.previewRows != defaultPreviewRows {
		t.Errorf("previewRows = %d", r.previewRows)
	}
	if out := r.highlightQuery("SELECT count(*) FROM orders"); !strings.Contains(out, "SELECT") {
		t.Errorf("highlighted query lost its text: %q", out)
	}
}

func TestCopyText(t *testing.T) {
	if got := copyText(model.NewBotMessage("plain")); got != "plain" {
		t.Errorf("copyText = %q", got)
	}
	msg := model.NewTableMessage("Found 1 result.", []string{"A", "B"}, [][]string{{"1", "2"}}, nil)
	if got := copyText(msg); got != "A\tB\n1\t2" {
		t.Errorf("copyText = %q", got)
	}
}

func TestFormatTimestampAt(t *testing.T) {
	now := time.Date(2025, 3, 14, 16, 0, 0, 0, time.Local)
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Date(2025, 3, 14, 9, 5, 0, 0, time.Local), "09:05"},
		{time.Date(2025, 3, 12, 9, 5, 0, 0, time.Local), "Wed 09:05"},
		{time.Date(2025, 1, 2, 9, 5, 0, 0, time.Local), "Jan 2 09:05"},
	}
	for _, tt := range tests {
		if got := formatTimestampAt(tt.t, now); got != tt.want {
			t.Errorf("formatTimestampAt(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}
