package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakePrimary struct {
	calls   int
	sent    [][]ChatMessage
	perCall func(call int, model string) (string, error)
}

func (f *fakePrimary) StreamChat(_ context.Context, model string, messages []ChatMessage, onDelta func(string)) (string, error) {
	f.calls++
	f.sent = append(f.sent, messages)
	text, err := f.perCall(f.calls, model)
	if err == nil && onDelta != nil {
		onDelta(text)
	}
	return text, err
}

type fakeSecondary struct {
	calls int
	text  string
	err   error
}

func (f *fakeSecondary) Chat(_ context.Context, _ string, _ []ChatMessage) (string, error) {
	f.calls++
	return f.text, f.err
}

type httpStatusErr int

func (e httpStatusErr) Error() string       { return fmt.Sprintf("http %d", int(e)) }
func (e httpStatusErr) HTTPStatusCode() int { return int(e) }

// streamFaultErr mimics a provider fault reported inside an open response
// stream: no HTTP status, but flagged transient.
type streamFaultErr struct{}

func (streamFaultErr) Error() string   { return "stream error: over capacity" }
func (streamFaultErr) Transient() bool { return true }

func testEngine(t *testing.T, primary PrimaryProvider, secondary SecondaryProvider, cfg EngineConfig) *Engine {
	t.Helper()
	e := NewEngine(newTestLogger(t), primary, secondary, DefaultValidator(), cfg)
	e.sleep = func(time.Duration) {}
	return e
}

func waterfallConfig() EngineConfig {
	return EngineConfig{
		Models:         []string{"model-a", "model-b"},
		SecondaryModel: "model-x",
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	}
}

func TestEngine_SuccessShortCircuits(t *testing.T) {
	primary := &fakePrimary{perCall: func(int, string) (string, error) {
		return "Отличный насос для вашего автомобиля.", nil
	}}
	secondary := &fakeSecondary{text: "Запасной текст."}

	e := testEngine(t, primary, secondary, waterfallConfig())
	text, err := e.Generate(context.Background(), GenerationRequest{Article: "A1", Name: "Насос"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Отличный насос для вашего автомобиля." {
		t.Fatalf("unexpected text: %q", text)
	}
	if primary.calls != 1 {
		t.Fatalf("expected exactly 1 primary call, got %d", primary.calls)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary must not be consulted on primary success")
	}
}

func TestEngine_InvalidTextExhaustsWaterfallThenSecondary(t *testing.T) {
	primary := &fakePrimary{perCall: func(int, string) (string, error) {
		return "", nil // always empty: validation failure on every attempt
	}}
	secondary := &fakeSecondary{text: "Качественная деталь от производителя."}

	cfg := waterfallConfig()
	e := testEngine(t, primary, secondary, cfg)
	text, err := e.Generate(context.Background(), GenerationRequest{Article: "A1", Name: "Насос"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != secondary.text {
		t.Fatalf("expected secondary text, got %q", text)
	}
	want := len(cfg.Models) * cfg.MaxRetries
	if primary.calls != want {
		t.Fatalf("expected %d primary calls before fallback, got %d", want, primary.calls)
	}
	if secondary.calls != 1 {
		t.Fatalf("expected exactly 1 secondary call, got %d", secondary.calls)
	}
}

func TestEngine_TransientErrorRetriesSameModel(t *testing.T) {
	var models []string
	primary := &fakePrimary{perCall: func(call int, model string) (string, error) {
		models = append(models, model)
		if call < 3 {
			return "", httpStatusErr(429)
		}
		return "Описание готово.", nil
	}}

	e := testEngine(t, primary, &fakeSecondary{}, waterfallConfig())
	text, err := e.Generate(context.Background(), GenerationRequest{Name: "Насос"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Описание готово." {
		t.Fatalf("unexpected text: %q", text)
	}
	// All three attempts stay on the first model.
	for i, m := range models {
		if m != "model-a" {
			t.Fatalf("attempt %d used %q, expected model-a", i+1, m)
		}
	}
}

func TestEngine_StreamFaultRetriesBeforeEscalating(t *testing.T) {
	perModel := map[string]int{}
	primary := &fakePrimary{perCall: func(call int, model string) (string, error) {
		perModel[model]++
		return "", streamFaultErr{}
	}}
	secondary := &fakeSecondary{text: "Качественная деталь от производителя."}

	cfg := waterfallConfig()
	e := testEngine(t, primary, secondary, cfg)
	text, err := e.Generate(context.Background(), GenerationRequest{Name: "Насос"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != secondary.text {
		t.Fatalf("expected secondary text, got %q", text)
	}
	// An in-stream fault is transient: each model gets its full retry budget
	// before the waterfall moves on.
	for _, model := range cfg.Models {
		if perModel[model] != cfg.MaxRetries {
			t.Fatalf("model %s attempted %d times, expected %d", model, perModel[model], cfg.MaxRetries)
		}
	}
}

func TestEngine_RetryAppendsCorrectiveMessage(t *testing.T) {
	primary := &fakePrimary{perCall: func(call int, _ string) (string, error) {
		if call == 1 {
			return "", streamFaultErr{}
		}
		return "Надёжная деталь для автомобиля.", nil
	}}

	e := testEngine(t, primary, nil, waterfallConfig())
	if _, err := e.Generate(context.Background(), GenerationRequest{Name: "Насос"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(primary.sent) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(primary.sent))
	}

	first := primary.sent[0]
	if len(first) != 2 {
		t.Fatalf("first attempt sent %d messages, expected system+user", len(first))
	}
	second := primary.sent[1]
	if len(second) != 3 {
		t.Fatalf("second attempt sent %d messages, expected the corrective turn appended", len(second))
	}
	last := second[len(second)-1]
	if last.Role != "user" || last.Content != retryNudge {
		t.Fatalf("second attempt must end with the corrective message, got %+v", last)
	}
}

func TestEngine_HardErrorSkipsToNextModel(t *testing.T) {
	primary := &fakePrimary{perCall: func(call int, model string) (string, error) {
		if model == "model-a" {
			return "", httpStatusErr(400) // malformed request: no point retrying
		}
		return "Надёжная деталь для автомобиля.", nil
	}}

	e := testEngine(t, primary, &fakeSecondary{}, waterfallConfig())
	text, err := e.Generate(context.Background(), GenerationRequest{Name: "Насос"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Надёжная деталь для автомобиля." {
		t.Fatalf("unexpected text: %q", text)
	}
	// One failed call on model-a, one successful call on model-b.
	if primary.calls != 2 {
		t.Fatalf("expected 2 primary calls, got %d", primary.calls)
	}
}

func TestEngine_NoSecondaryIsTerminal(t *testing.T) {
	primary := &fakePrimary{perCall: func(int, string) (string, error) {
		return "", httpStatusErr(500)
	}}

	e := testEngine(t, primary, nil, waterfallConfig())
	_, err := e.Generate(context.Background(), GenerationRequest{Name: "Насос"})
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
}

func TestEngine_SecondaryInvalidTextIsTerminal(t *testing.T) {
	primary := &fakePrimary{perCall: func(int, string) (string, error) {
		return "", nil
	}}
	secondary := &fakeSecondary{text: "short"}

	e := testEngine(t, primary, secondary, waterfallConfig())
	_, err := e.Generate(context.Background(), GenerationRequest{Name: "Насос"})
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidText) {
		t.Fatalf("expected wrapped ErrInvalidText, got %v", err)
	}
}

func TestEngine_StripsCodeFence(t *testing.T) {
	primary := &fakePrimary{perCall: func(int, string) (string, error) {
		return "```html\n<h2>Насос</h2>\n```", nil
	}}

	e := testEngine(t, primary, nil, waterfallConfig())
	text, err := e.Generate(context.Background(), GenerationRequest{Name: "Насос"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "<h2>Насос</h2>" {
		t.Fatalf("expected fence stripped, got %q", text)
	}
}
