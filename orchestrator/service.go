package orchestrator

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/constants"
	"github.com/thecxx/fcstream/event"
)

const titleRunes = 30

// Request is one user message to process.
type Request struct {
	ConversationID string
	Message        string
	Provider       string
	Model          string
	// UseFunctions attaches the function schema to the turn.
	UseFunctions bool
}

// Service owns the conversation lifecycle around orchestrated turns.
type Service struct {
	sink   fcstream.Sink
	models fcstream.ModelSource
	orch   *Orchestrator

	defaultProvider string
	defaultModel    string
	logger          *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDefaultModel sets the model used for titles and suggestions, and for
// requests that name no model.
func WithDefaultModel(provider, model string) ServiceOption {
	return func(s *Service) { s.defaultProvider, s.defaultModel = provider, model }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService returns a Service.
func NewService(sink fcstream.Sink, models fcstream.ModelSource, orch *Orchestrator, opts ...ServiceOption) *Service {
	s := &Service{
		sink:            sink,
		models:          models,
		orch:            orch,
		defaultProvider: constants.ProviderOpenAI,
		defaultModel:    "gpt-4o-mini",
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// begin resolves the model, loads or creates the conversation and saves the
// user message before any generation starts.
func (s *Service) begin(ctx context.Context, req Request) (Turn, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Turn{}, fmt.Errorf("empty message")
	}
	provider, name := req.Provider, req.Model
	if provider == "" {
		provider = s.defaultProvider
	}
	if name == "" {
		name = s.defaultModel
	}
	model, err := s.models.Model(provider, name)
	if err != nil {
		return Turn{}, err
	}

	var conv *fcstream.Conversation
	if req.ConversationID != "" {
		if conv, err = s.sink.Load(ctx, req.ConversationID); err != nil {
			return Turn{}, fmt.Errorf("load conversation: %w", err)
		}
	}
	if conv == nil {
		id := req.ConversationID
		if id == "" {
			id = uuid.NewString()
		}
		now := time.Now().UTC()
		conv = &fcstream.Conversation{
			ID:        id,
			Title:     truncate(req.Message, titleRunes),
			Provider:  provider,
			Model:     name,
			Messages:  []fcstream.Message{},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	conv.Append(fcstream.UserMessage(req.Message))
	if err := s.sink.Save(ctx, conv); err != nil {
		return Turn{}, &TurnError{Kind: PersistenceFailure, Op: "save user message", Err: err}
	}
	return Turn{Conversation: conv, Model: model, Functions: req.UseFunctions}, nil
}

// Stream processes req as a streaming turn. Setup failures are returned
// before any event is produced.
func (s *Service) Stream(ctx context.Context, req Request) (iter.Seq[event.Event], string, error) {
	turn, err := s.begin(ctx, req)
	if err != nil {
		return nil, "", err
	}
	return s.orch.Stream(ctx, turn), turn.Conversation.ID, nil
}

// Send processes req as a non-streaming turn.
func (s *Service) Send(ctx context.Context, req Request) (*Reply, error) {
	turn, err := s.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.orch.HandleFunctionCalls(ctx, turn)
}

// Conversations lists stored conversations, most recent first.
func (s *Service) Conversations(ctx context.Context) ([]fcstream.ConversationSummary, error) {
	return s.sink.List(ctx)
}

// Conversation returns one conversation or ErrConversationNotFound.
func (s *Service) Conversation(ctx context.Context, id string) (*fcstream.Conversation, error) {
	conv, err := s.sink.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// DeleteConversation removes a conversation and reports whether it existed.
func (s *Service) DeleteConversation(ctx context.Context, id string) (bool, error) {
	return s.sink.Delete(ctx, id)
}

// GenerateTitle asks the default model for a short title. Without an
// explicit message the latest exchange of the conversation is used. A model
// failure yields a placeholder title rather than an error.
func (s *Service) GenerateTitle(ctx context.Context, conversationID, message string) (string, error) {
	var conv *fcstream.Conversation
	if conversationID != "" {
		var err error
		if conv, err = s.Conversation(ctx, conversationID); err != nil {
			return "", err
		}
		if message == "" {
			message = titleSource(conv.Messages)
		}
	}
	if message == "" {
		return "", fmt.Errorf("no message or conversation content to title")
	}

	title, err := s.complete(ctx, fmt.Sprintf(titlePrompt, message))
	if err != nil {
		s.logger.Error("generate title failed", "conversation_id", conversationID, "err", err)
		if conversationID != "" {
			return fmt.Sprintf("对话 %s...", prefix(conversationID, 8)), nil
		}
		return "新对话", nil
	}
	title = cleanTitle(title)

	if conv != nil {
		// a turn may have committed messages since conv was loaded
		ok, err := s.sink.SetTitle(ctx, conv.ID, title)
		if err != nil {
			return "", &TurnError{Kind: PersistenceFailure, Op: "save title", Err: err}
		}
		if !ok {
			return "", ErrConversationNotFound
		}
	}
	return title, nil
}

// SuggestQuestions proposes up to three follow-up questions for the latest
// exchange of a conversation.
func (s *Service) SuggestQuestions(ctx context.Context, conversationID string) ([]string, error) {
	conv, err := s.Conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	user, assistant := latestExchange(conv.Messages)
	var dialog strings.Builder
	if user != "" {
		fmt.Fprintf(&dialog, "用户: %s\n", user)
	}
	if assistant != "" {
		fmt.Fprintf(&dialog, "助手: %s", assistant)
	}
	if dialog.Len() == 0 {
		return append([]string(nil), emptyDialogQuestions...), nil
	}

	text, err := s.complete(ctx, fmt.Sprintf(suggestionsPrompt, dialog.String()))
	if err != nil {
		s.logger.Error("suggest questions failed", "conversation_id", conversationID, "err", err)
		return append([]string(nil), fallbackQuestions...), nil
	}
	questions := parseQuestions(text)
	if len(questions) > 3 {
		questions = questions[:3]
	}
	return questions, nil
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	model, err := s.models.Model(s.defaultProvider, s.defaultModel)
	if err != nil {
		return "", err
	}
	resp, err := model.ChatCompletion(ctx, []fcstream.Message{fcstream.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return resp.Answer().Content, nil
}

// latestExchange finds the most recent user and assistant texts, scanning
// from the end.
func latestExchange(msgs []fcstream.Message) (user, assistant string) {
	for i := len(msgs) - 1; i >= 0; i-- {
		switch msgs[i].Role {
		case constants.RoleAssistant:
			if assistant == "" {
				assistant = msgs[i].Content
			}
		case constants.RoleUser:
			if user == "" {
				user = msgs[i].Content
			}
		}
		if user != "" && assistant != "" {
			break
		}
	}
	return user, assistant
}

func titleSource(msgs []fcstream.Message) string {
	user, assistant := latestExchange(msgs)
	var parts []string
	if user != "" {
		parts = append(parts, "用户: "+user)
	}
	if assistant != "" {
		parts = append(parts, "助手: "+assistant)
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}

	for _, m := range msgs {
		if m.Role == constants.RoleUser {
			parts = append(parts, m.Content)
			if len(parts) == 3 {
				break
			}
		}
	}
	return strings.Join(parts, "\n")
}

var titlePrefixes = []string{"标题：", "标题:", "主题：", "主题:"}

func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, p := range titlePrefixes {
		title = strings.TrimPrefix(title, p)
	}
	title = strings.Trim(strings.TrimSpace(title), `"'“”`)
	return truncate(strings.TrimSpace(title), titleRunes)
}

var (
	numberedItem = regexp.MustCompile(`(?m)^\s*\d+[.)、]\s*(.+?)\s*$`)
	itemPrefix   = regexp.MustCompile(`^\d+[.)、]\s*`)
)

// parseQuestions extracts questions from a numbered list, falling back to
// one question per non-empty line.
func parseQuestions(text string) []string {
	var numbered []string
	for _, m := range numberedItem.FindAllStringSubmatch(text, -1) {
		numbered = append(numbered, m[1])
	}
	if len(numbered) >= 3 {
		return numbered
	}

	var questions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(itemPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			questions = append(questions, line)
		}
	}
	return questions
}

// truncate caps s at n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
