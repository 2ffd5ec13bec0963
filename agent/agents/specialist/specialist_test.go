package specialist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	contractx "github.com/merryway/baristabot/agent/contract"
	menux "github.com/merryway/baristabot/agent/menu"
	orderx "github.com/merryway/baristabot/agent/order"
	recommendx "github.com/merryway/baristabot/agent/recommend"
	structuredx "github.com/merryway/baristabot/agent/structured"
)

type fakeCompleter struct {
	responses []string
	err       error
	calls     int
	convs     [][]contractx.Message
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []contractx.Message) (string, error) {
	f.calls++
	f.convs = append(f.convs, append([]contractx.Message(nil), messages...))
	if f.err != nil {
		return "", f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		return "", fmt.Errorf("no response left at call=%d", f.calls)
	}
	return f.responses[idx], nil
}

type fakeRetriever struct {
	snippets []contractx.Snippet
	err      error
	queries  []string
	topKs    []int
}

func (f *fakeRetriever) Search(ctx context.Context, query string, topK int) ([]contractx.Snippet, error) {
	f.queries = append(f.queries, query)
	f.topKs = append(f.topKs, topK)
	if f.err != nil {
		return nil, f.err
	}
	return f.snippets, nil
}

type fakeSink struct {
	events []OrderEvent
	err    error
}

func (f *fakeSink) Publish(ctx context.Context, event OrderEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func testCatalog() *menux.Catalog {
	return menux.New([]menux.Item{
		{Name: "Latte", Price: 4.75},
		{Name: "Croissant", Price: 3.25},
		{Name: "Cappuccino", Price: 4.50},
	})
}

func testRecEngine() *recommendx.Engine {
	table := recommendx.CoOccurrenceTable{
		"Latte": {
			{Product: "Hazelnut Biscotti", Category: "Bakery", Confidence: 0.6},
		},
	}
	popularity := []recommendx.PopularityRow{
		{Product: "Latte", Category: "Coffee", Transactions: 900},
		{Product: "Croissant", Category: "Bakery", Transactions: 600},
		{Product: "Hazelnut Biscotti", Category: "Bakery", Transactions: 300},
	}
	return recommendx.NewEngine(table, popularity)
}

func userLog(texts ...string) []contractx.Message {
	log := make([]contractx.Message, 0, len(texts))
	for _, text := range texts {
		log = append(log, contractx.UserMessage(text))
	}
	return log
}

func TestGuardAllowedLeavesContentEmpty(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{
		responses: []string{`{"chain_of_thought":"on topic","decision":"allowed","message":""}`},
	}
	guard := newGuard(completer, "gate prompt")

	reply, err := guard.Respond(context.Background(), userLog("what's on the menu?"))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply.Content != "" {
		t.Fatalf("allowed verdict must not speak, got %q", reply.Content)
	}
	if reply.Memory == nil || reply.Memory.Agent != contractx.AgentTypeGuard {
		t.Fatalf("missing guard checkpoint: %+v", reply.Memory)
	}
	if reply.Memory.Decision != contractx.DecisionAllowed {
		t.Fatalf("decision = %q", reply.Memory.Decision)
	}
}

func TestGuardBlocksWithItsOwnMessage(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{
		responses: []string{`{"chain_of_thought":"off topic","decision":"not allowed","message":"Sorry, I can only help with the coffee shop."}`},
	}
	guard := newGuard(completer, "gate prompt")

	reply, err := guard.Respond(context.Background(), userLog("write me a poem about the sea"))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if !strings.Contains(reply.Content, "coffee shop") {
		t.Fatalf("expected the refusal message, got %q", reply.Content)
	}
	if reply.Memory.Decision != contractx.DecisionNotAllowed {
		t.Fatalf("decision = %q", reply.Memory.Decision)
	}
}

func TestGuardFailsClosedAfterExhaustedRepair(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{responses: []string{"junk", "junk", "junk"}}
	guard := newGuard(completer, "gate prompt")

	reply, err := guard.Respond(context.Background(), userLog("hello"))
	if err != nil {
		t.Fatalf("exhausted repair must degrade, not fail: %v", err)
	}
	if reply.Memory.Decision != contractx.DecisionNotAllowed {
		t.Fatalf("guard must fail closed, got %q", reply.Memory.Decision)
	}
	if completer.calls != structuredx.MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", structuredx.MaxAttempts, completer.calls)
	}
}

func TestGuardBoundsItsContextWindow(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{
		responses: []string{`{"chain_of_thought":"ok","decision":"allowed"}`},
	}
	guard := newGuard(completer, "gate prompt")

	long := make([]contractx.Message, 0, 20)
	for i := 0; i < 20; i++ {
		long = append(long, contractx.UserMessage(fmt.Sprintf("message %d", i)))
	}

	if _, err := guard.Respond(context.Background(), long); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	// System prompt plus the bounded window.
	if got := len(completer.convs[0]); got != guardContextWindow+1 {
		t.Fatalf("expected %d messages sent to the model, got %d", guardContextWindow+1, got)
	}
}

func TestClassifierRoutesToSpecialist(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{
		responses: []string{`{"reason":"wants coffee","decision":"order_taking_agent"}`},
	}
	classifier := newClassifier(completer, "route prompt")

	log := []contractx.Message{
		contractx.UserMessage("hi"),
		contractx.AssistantMessage("welcome", nil),
		contractx.UserMessage("two lattes please"),
	}
	reply, err := classifier.Respond(context.Background(), log)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply.Memory.Decision != string(contractx.AgentTypeOrderTaking) {
		t.Fatalf("decision = %q", reply.Memory.Decision)
	}
	if reply.Content != "" {
		t.Fatalf("a routed turn must not speak, got %q", reply.Content)
	}

	// Only the latest user message goes to the router.
	conv := completer.convs[0]
	if len(conv) != 2 || conv[1].Content != "two lattes please" {
		t.Fatalf("router conversation = %+v", conv)
	}
}

func TestClassifierUnsureAfterExhaustedRepair(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{responses: []string{"junk", "junk", "junk"}}
	classifier := newClassifier(completer, "route prompt")

	reply, err := classifier.Respond(context.Background(), userLog("hmm"))
	if err != nil {
		t.Fatalf("exhausted repair must degrade, not fail: %v", err)
	}
	if reply.Memory.Decision != contractx.DecisionUnsure {
		t.Fatalf("decision = %q", reply.Memory.Decision)
	}
	if reply.Content == "" {
		t.Fatal("unsure verdict must carry a clarification message")
	}
}

func TestDetailsInjectsRetrievedContext(t *testing.T) {
	t.Parallel()

	retriever := &fakeRetriever{
		snippets: []contractx.Snippet{
			{Text: "We open at 7am every day.", Score: 0.9},
			{Text: "Closed on New Year's Day.", Score: 0.7},
		},
	}
	completer := &fakeCompleter{responses: []string{"We open at 7am!"}}
	details := newDetails(completer, retriever, "waiter prompt")

	reply, err := details.Respond(context.Background(), userLog("when do you open?"))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply.Content != "We open at 7am!" {
		t.Fatalf("unexpected reply: %q", reply.Content)
	}
	if len(retriever.topKs) != 1 || retriever.topKs[0] != detailsTopK {
		t.Fatalf("retriever topK = %v", retriever.topKs)
	}

	conv := completer.convs[0]
	last := conv[len(conv)-1]
	if !strings.Contains(last.Content, "We open at 7am every day.") {
		t.Fatalf("retrieved context missing from the model input: %q", last.Content)
	}
}

func TestDetailsAnswersWithoutRetriever(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{responses: []string{"We're on 3rd street."}}
	details := newDetails(completer, nil, "waiter prompt")

	reply, err := details.Respond(context.Background(), userLog("where are you?"))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply.Content == "" {
		t.Fatal("expected an answer without retrieval")
	}
}

func TestDetailsDegradesOnRetrievalError(t *testing.T) {
	t.Parallel()

	retriever := &fakeRetriever{err: errors.New("index offline")}
	completer := &fakeCompleter{responses: []string{"Let me check..."}}
	details := newDetails(completer, retriever, "waiter prompt")

	reply, err := details.Respond(context.Background(), userLog("do you deliver?"))
	if err != nil {
		t.Fatalf("retrieval failure must not fail the turn: %v", err)
	}
	if reply.Content != "Let me check..." {
		t.Fatalf("unexpected reply: %q", reply.Content)
	}
}

func TestRecommendationAprioriMode(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{
		responses: []string{
			`{"chain_of_thought":"they mention a latte","recommendation_type":"apriori","parameters":["Latte"]}`,
			"A Hazelnut Biscotti goes great with that latte!",
		},
	}
	rec := newRecommendation(completer, testRecEngine(), "phrase prompt", "classify {products} {categories}")

	reply, err := rec.Respond(context.Background(), userLog("what goes well with a latte?"))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if !strings.Contains(reply.Content, "Hazelnut Biscotti") {
		t.Fatalf("unexpected reply: %q", reply.Content)
	}
	if reply.Memory.Decision != recTypeApriori {
		t.Fatalf("checkpoint decision = %q", reply.Memory.Decision)
	}

	// The phrasing request pins the exact ranked items.
	conv := completer.convs[1]
	last := conv[len(conv)-1]
	if !strings.Contains(last.Content, "recommend these items exactly: Hazelnut Biscotti") {
		t.Fatalf("phrasing request = %q", last.Content)
	}
}

func TestRecommendationClassifierFailureFallsBackToPopular(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{
		responses: []string{
			"junk", "junk", "junk", // classification exhausts
			"Our most popular picks are the Latte and the Croissant.",
		},
	}
	rec := newRecommendation(completer, testRecEngine(), "phrase prompt", "classify {products} {categories}")

	reply, err := rec.Respond(context.Background(), userLog("surprise me"))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply.Memory.Decision != recTypePopular {
		t.Fatalf("expected popular fallback, got %q", reply.Memory.Decision)
	}
	if reply.Content == "" {
		t.Fatal("expected a phrased recommendation")
	}
}

func newTestOrderAgent(orderCompleter, recCompleter *fakeCompleter, sink OrderSink) *orderTakingImpl {
	catalog := testCatalog()
	rec := newRecommendation(recCompleter, testRecEngine(), "phrase prompt", "classify {products} {categories}")
	return newOrderTaking(
		orderCompleter,
		orderx.NewMachine(catalog),
		catalog.PromptLines(),
		"order prompt {menu} {order}",
		rec,
		sink,
	)
}

func orderSnapshotFrom(t *testing.T, msg contractx.Message) orderx.Snapshot {
	t.Helper()
	if msg.Memory == nil || msg.Memory.Agent != contractx.AgentTypeOrderTaking {
		t.Fatalf("message has no order checkpoint: %+v", msg.Memory)
	}
	var snap orderx.Snapshot
	if err := json.Unmarshal(msg.Memory.Data, &snap); err != nil {
		t.Fatalf("unmarshal order snapshot: %v", err)
	}
	return snap
}

func TestOrderTakingAddsItemsAndRecommendsOnce(t *testing.T) {
	t.Parallel()

	orderCompleter := &fakeCompleter{
		responses: []string{
			`{"actions":[{"action":"add","item":"Latte","quantity":2},{"action":"add","item":"Croissant","quantity":1}],"response":"Two lattes and a croissant, coming up!"}`,
			`{"actions":[{"action":"add","item":"Cappuccino","quantity":1}],"response":"One cappuccino added."}`,
		},
	}
	recCompleter := &fakeCompleter{
		responses: []string{"Would you like a Hazelnut Biscotti with that?"},
	}
	agent := newTestOrderAgent(orderCompleter, recCompleter, nil)

	log := userLog("i'd like 2 lattes and a croissant")
	reply, err := agent.Respond(context.Background(), log)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if !strings.Contains(reply.Content, "coming up") || !strings.Contains(reply.Content, "Biscotti") {
		t.Fatalf("expected reply plus recommendation, got %q", reply.Content)
	}

	snap := orderSnapshotFrom(t, reply)
	if len(snap.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %+v", snap.Lines)
	}
	if !snap.RecommendationOffered {
		t.Fatal("recommendation flag must latch after the first offer")
	}
	if snap.StepNumber != 2 {
		t.Fatalf("step number = %d", snap.StepNumber)
	}

	// Next turn: new add, but the offer already happened.
	log = append(log, reply, contractx.UserMessage("add a cappuccino too"))
	reply, err = agent.Respond(context.Background(), log)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if recCompleter.calls != 1 {
		t.Fatalf("recommendation must fire once per order, got %d calls", recCompleter.calls)
	}
	snap = orderSnapshotFrom(t, reply)
	if len(snap.Lines) != 3 {
		t.Fatalf("expected 3 lines after the second turn, got %+v", snap.Lines)
	}
}

func TestOrderTakingStatusInquirySkipsModel(t *testing.T) {
	t.Parallel()

	orderCompleter := &fakeCompleter{}
	agent := newTestOrderAgent(orderCompleter, &fakeCompleter{}, nil)

	snap := orderx.NewSnapshot()
	snap.Lines = []orderx.Line{{Item: "Latte", Quantity: 2, Price: 4.75}}
	data, _ := json.Marshal(snap)

	log := []contractx.Message{
		contractx.UserMessage("two lattes"),
		contractx.AssistantMessage("done", &contractx.Checkpoint{
			Agent: contractx.AgentTypeOrderTaking,
			Data:  data,
		}),
		contractx.UserMessage("what's my order so far?"),
	}

	reply, err := agent.Respond(context.Background(), log)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if orderCompleter.calls != 0 {
		t.Fatalf("status inquiry must not hit the model, got %d calls", orderCompleter.calls)
	}
	if !strings.Contains(reply.Content, "Latte") || !strings.Contains(reply.Content, "$9.50") {
		t.Fatalf("status reply = %q", reply.Content)
	}
}

func TestOrderTakingFinalizePublishesEvent(t *testing.T) {
	t.Parallel()

	orderCompleter := &fakeCompleter{
		responses: []string{`{"actions":[{"action":"finalize"}],"response":"Finalizing now."}`},
	}
	sink := &fakeSink{}
	agent := newTestOrderAgent(orderCompleter, &fakeCompleter{}, sink)

	snap := orderx.NewSnapshot()
	snap.Lines = []orderx.Line{
		{Item: "Latte", Quantity: 2, Price: 4.75},
		{Item: "Croissant", Quantity: 1, Price: 3.25},
	}
	snap.RecommendationOffered = true
	data, _ := json.Marshal(snap)

	log := []contractx.Message{
		contractx.UserMessage("two lattes and a croissant"),
		contractx.AssistantMessage("done", &contractx.Checkpoint{
			Agent: contractx.AgentTypeOrderTaking,
			Data:  data,
		}),
		contractx.UserMessage("that's everything, close it out"),
	}

	reply, err := agent.Respond(context.Background(), log)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if !strings.Contains(reply.Content, "$12.75") {
		t.Fatalf("finalize summary = %q", reply.Content)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(sink.events))
	}
	if sink.events[0].Total != 12.75 || sink.events[0].OrderID != snap.OrderID {
		t.Fatalf("published event = %+v", sink.events[0])
	}

	final := orderSnapshotFrom(t, reply)
	if !final.Finalized {
		t.Fatal("snapshot must latch finalized")
	}
}

func TestOrderTakingSinkFailureDoesNotFailTurn(t *testing.T) {
	t.Parallel()

	orderCompleter := &fakeCompleter{
		responses: []string{`{"actions":[{"action":"add","item":"Latte","quantity":1},{"action":"finalize"}],"response":""}`},
	}
	sink := &fakeSink{err: errors.New("queue unreachable")}
	agent := newTestOrderAgent(orderCompleter, &fakeCompleter{}, sink)

	reply, err := agent.Respond(context.Background(), userLog("one latte and that's it"))
	if err != nil {
		t.Fatalf("publish failure must not fail the turn: %v", err)
	}
	if !strings.Contains(reply.Content, "Thank you for ordering") {
		t.Fatalf("unexpected reply: %q", reply.Content)
	}
}

func TestOrderTakingRejectsUnknownActionTags(t *testing.T) {
	t.Parallel()

	orderCompleter := &fakeCompleter{
		responses: []string{
			`{"actions":[{"action":"teleport","item":"Latte","quantity":1}],"response":"ok"}`,
			`{"actions":[{"action":"add","item":"Latte","quantity":1}],"response":"One latte, got it."}`,
		},
	}
	recCompleter := &fakeCompleter{responses: []string{""}}
	agent := newTestOrderAgent(orderCompleter, recCompleter, nil)

	reply, err := agent.Respond(context.Background(), userLog("one latte"))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if orderCompleter.calls != 2 {
		t.Fatalf("bad action tag must drive a repair retry, got %d calls", orderCompleter.calls)
	}
	snap := orderSnapshotFrom(t, reply)
	if len(snap.Lines) != 1 || snap.Lines[0].Item != "Latte" {
		t.Fatalf("lines = %+v", snap.Lines)
	}
}

func TestOrderTakingFallsBackAfterExhaustedRepair(t *testing.T) {
	t.Parallel()

	orderCompleter := &fakeCompleter{responses: []string{"junk", "junk", "junk"}}
	agent := newTestOrderAgent(orderCompleter, &fakeCompleter{}, nil)

	reply, err := agent.Respond(context.Background(), userLog("one latte please"))
	if err != nil {
		t.Fatalf("exhausted repair must degrade, not fail: %v", err)
	}
	if reply.Content != orderFallbackMessage {
		t.Fatalf("unexpected reply: %q", reply.Content)
	}
	// The snapshot survives untouched for the next turn.
	snap := orderSnapshotFrom(t, reply)
	if len(snap.Lines) != 0 {
		t.Fatalf("fallback must not invent order lines: %+v", snap.Lines)
	}
}

func TestOrderTakingResetsAfterFinalizedOrder(t *testing.T) {
	t.Parallel()

	orderCompleter := &fakeCompleter{
		responses: []string{`{"actions":[{"action":"add","item":"Cappuccino","quantity":1}],"response":"A fresh order, one cappuccino."}`},
	}
	recCompleter := &fakeCompleter{responses: []string{""}}
	agent := newTestOrderAgent(orderCompleter, recCompleter, nil)

	finalized := orderx.NewSnapshot()
	finalized.Lines = []orderx.Line{{Item: "Latte", Quantity: 2, Price: 4.75}}
	finalized.Finalized = true
	finalized.RecommendationOffered = true
	data, _ := json.Marshal(finalized)

	log := []contractx.Message{
		contractx.UserMessage("finalize my order"),
		contractx.AssistantMessage("done", &contractx.Checkpoint{
			Agent: contractx.AgentTypeOrderTaking,
			Data:  data,
		}),
		contractx.UserMessage("actually I want a cappuccino now"),
	}

	reply, err := agent.Respond(context.Background(), log)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	snap := orderSnapshotFrom(t, reply)
	if snap.OrderID == finalized.OrderID {
		t.Fatal("a new order must get a fresh id")
	}
	if snap.Finalized {
		t.Fatal("reset order must not stay finalized")
	}
	if len(snap.Lines) != 1 || snap.Lines[0].Item != "Cappuccino" {
		t.Fatalf("lines = %+v", snap.Lines)
	}
}

func TestRegistryWiresAllSpecialists(t *testing.T) {
	t.Parallel()

	models := NewRegistryWithCompleters(Completers{
		Guard:          &fakeCompleter{},
		Classifier:     &fakeCompleter{},
		Details:        &fakeCompleter{},
		Recommendation: &fakeCompleter{},
		OrderTaking:    &fakeCompleter{},
	}, Deps{
		Catalog: testCatalog(),
		Engine:  testRecEngine(),
	})

	if models.Guard() == nil || models.Classifier() == nil {
		t.Fatal("gate and router must always be wired")
	}
	for _, agent := range []contractx.AgentType{
		contractx.AgentTypeDetails,
		contractx.AgentTypeRecommendation,
		contractx.AgentTypeOrderTaking,
	} {
		if _, ok := models.Lookup(agent); !ok {
			t.Fatalf("no specialist for %s", agent)
		}
	}
	if _, ok := models.Lookup(contractx.AgentTypeGuard); ok {
		t.Fatal("the gate must not be dispatchable")
	}
}
