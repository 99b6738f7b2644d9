package chat_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	ai "github.com/spiritledsoftware/ai"
	"github.com/spiritledsoftware/ai/internal/codec"
	"github.com/spiritledsoftware/ai/internal/testutil"
)

func newSession(extra ...func(*ai.Options)) *ai.Chat {
	opts := ai.Options{Endpoint: server.URL()}
	for _, fn := range extra {
		fn(&opts)
	}
	c := ai.NewChat(opts)
	DeferCleanup(func() { c.Close() })
	return c
}

var _ = Describe("Chat session", func() {
	Describe("streaming a reply", func() {
		It("accumulates text deltas into one assistant message", func() {
			server.Enqueue(testutil.Turn{Frames: []string{
				codec.FormatText("Hel"),
				codec.FormatText("lo!"),
				codec.FormatFinish(ai.FinishInfo{Reason: "stop"}),
			}})

			c := newSession()
			Expect(c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "hi"})).To(Succeed())

			messages := c.Messages()
			Expect(messages).To(HaveLen(2))
			Expect(messages[1].Role).To(Equal(ai.RoleAssistant))
			Expect(messages[1].Content).To(Equal("Hello!"))
			Expect(c.IsLoading()).To(BeFalse())
			Expect(c.Err()).NotTo(HaveOccurred())
		})

		It("publishes message updates while streaming", func() {
			server.Enqueue(testutil.Turn{Frames: []string{
				codec.FormatText("a"),
				codec.FormatText("b"),
			}})

			c := newSession()
			var updates int
			unsubscribe := c.Subscribe(ai.EventMessagesUpdated, func(ai.Event) {
				updates++
			})
			DeferCleanup(unsubscribe)

			Expect(c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "hi"})).To(Succeed())

			// Optimistic write plus one commit per decoded frame.
			Expect(updates).To(BeNumerically(">=", 3))
		})

		It("collects side-channel data records", func() {
			server.Enqueue(testutil.Turn{Frames: []string{
				codec.FormatData(map[string]any{"progress": 0.5}),
				codec.FormatText("working"),
				codec.FormatData(map[string]any{"progress": 1.0}),
			}})

			c := newSession()
			Expect(c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "go"})).To(Succeed())

			Expect(c.Data()).To(HaveLen(2))
			Expect(string(c.Data()[1])).To(MatchJSON(`{"progress": 1.0}`))
		})

		It("supports the plain text protocol", func() {
			server.Enqueue(testutil.Turn{Frames: []string{"Just raw ", "text."}})

			c := newSession(func(o *ai.Options) { o.Protocol = ai.ProtocolText })
			Expect(c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "hi"})).To(Succeed())

			messages := c.Messages()
			Expect(messages[1].Content).To(Equal("Just raw text."))
		})
	})

	Describe("failure handling", func() {
		It("rolls back the optimistic append on a non-2xx response", func() {
			server.Enqueue(testutil.Turn{Status: 503, Frames: []string{"overloaded"}})

			c := newSession()
			err := c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "hi"})
			Expect(err).To(HaveOccurred())

			Expect(c.Messages()).To(BeEmpty())
			Expect(c.Err()).To(HaveOccurred())
		})

		It("surfaces in-band error frames and restores the history", func() {
			server.Enqueue(testutil.Turn{Frames: []string{
				codec.FormatText("part"),
				codec.FormatError("model exploded"),
			}})

			c := newSession()
			err := c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "hi"})
			Expect(err).To(MatchError(ContainSubstring("model exploded")))
			Expect(c.Messages()).To(BeEmpty())
		})
	})

	Describe("stopping", func() {
		It("keeps partial content and reports no error", func() {
			server.Enqueue(testutil.Turn{
				Frames: []string{codec.FormatText("partial")},
				Hang:   true,
			})

			c := newSession()
			done := make(chan error, 1)
			go func() {
				done <- c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "hi"})
			}()

			Eventually(func() int { return len(c.Messages()) }, "5s", "10ms").Should(Equal(2))

			c.Stop()
			Eventually(done, "5s").Should(Receive(BeNil()))

			messages := c.Messages()
			Expect(messages[1].Content).To(Equal("partial"))
			Expect(c.Err()).NotTo(HaveOccurred())
			Expect(c.IsLoading()).To(BeFalse())
		})
	})

	Describe("tool roundtrips", func() {
		It("executes the tool and continues the conversation once", func() {
			server.Enqueue(
				testutil.Turn{Frames: []string{
					codec.FormatToolCall(ai.ToolCall{
						ToolCallID: "call-1",
						ToolName:   "add",
						Args:       json.RawMessage(`{"a":2,"b":3}`),
					}),
					codec.FormatFinish(ai.FinishInfo{Reason: "tool-calls"}),
				}},
				testutil.Turn{Frames: []string{
					codec.FormatText("2 + 3 = 5"),
					codec.FormatFinish(ai.FinishInfo{Reason: "stop"}),
				}},
			)

			c := newSession(func(o *ai.Options) {
				o.MaxToolRoundtrips = 2
				o.OnToolCall = func(call ai.ToolCall) (any, error) {
					var args struct{ A, B int }
					Expect(json.Unmarshal(call.Args, &args)).To(Succeed())
					return args.A + args.B, nil
				}
			})

			Expect(c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "2+3?"})).To(Succeed())

			Expect(server.Requests()).To(HaveLen(2))
			messages := c.Messages()
			Expect(messages).To(HaveLen(3))
			Expect(messages[1].ToolInvocations).To(HaveLen(1))
			Expect(string(messages[1].ToolInvocations[0].Result)).To(Equal("5"))
			Expect(messages[2].Content).To(Equal("2 + 3 = 5"))
		})

		It("assembles streamed tool call arguments from deltas", func() {
			server.Enqueue(testutil.Turn{Frames: []string{
				codec.FormatToolCallStart("call-1", "search"),
				codec.FormatToolCallDelta("call-1", `{"query":`),
				codec.FormatToolCallDelta("call-1", `"golang"}`),
				codec.FormatToolResult("call-1", []string{"result"}),
			}})

			c := newSession()
			Expect(c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "search"})).To(Succeed())

			messages := c.Messages()
			Expect(messages[1].ToolInvocations).To(HaveLen(1))
			inv := messages[1].ToolInvocations[0]
			Expect(string(inv.Args)).To(MatchJSON(`{"query":"golang"}`))
			Expect(string(inv.Result)).To(MatchJSON(`["result"]`))
		})
	})

	Describe("interactive tool results", func() {
		It("continues after the last pending call is resolved", func() {
			server.Enqueue(
				testutil.Turn{Frames: []string{
					codec.FormatToolCallStart("call-1", "confirm"),
					codec.FormatToolCallDelta("call-1", `{}`),
				}},
				testutil.Turn{Frames: []string{codec.FormatText("confirmed")}},
			)

			c := newSession()
			Expect(c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "do it"})).To(Succeed())
			Expect(server.Requests()).To(HaveLen(1))

			Expect(c.AddToolResult(ctx, "call-1", map[string]bool{"approved": true})).To(Succeed())

			Expect(server.Requests()).To(HaveLen(2))
			messages := c.Messages()
			Expect(messages[len(messages)-1].Content).To(Equal("confirmed"))
		})
	})

	Describe("reload", func() {
		It("replaces the last assistant response", func() {
			server.Enqueue(
				testutil.Turn{Frames: []string{codec.FormatText("first try")}},
				testutil.Turn{Frames: []string{codec.FormatText("second try")}},
			)

			c := newSession()
			Expect(c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "question"})).To(Succeed())
			Expect(c.Reload(ctx)).To(Succeed())

			messages := c.Messages()
			Expect(messages).To(HaveLen(2))
			Expect(messages[1].Content).To(Equal("second try"))

			requests := server.Requests()
			Expect(requests).To(HaveLen(2))
			Expect(requests[1].Messages).To(HaveLen(1))
			Expect(requests[1].Messages[0].Content).To(Equal("question"))
		})

		It("regenerates from a seeded history", func() {
			server.Enqueue(testutil.Turn{Frames: []string{codec.FormatText("regenerated")}})

			c := newSession()
			c.SetMessages([]ai.Message{
				testutil.TextMessage(ai.RoleUser, "question"),
				testutil.TextMessage(ai.RoleAssistant, "stale answer"),
			})
			Expect(server.Requests()).To(BeEmpty())

			Expect(c.Reload(ctx)).To(Succeed())

			messages := c.Messages()
			Expect(messages).To(HaveLen(2))
			Expect(messages[1].Content).To(Equal("regenerated"))

			requests := server.Requests()
			Expect(requests).To(HaveLen(1))
			Expect(requests[0].Messages).To(HaveLen(1))
			Expect(requests[0].Messages[0].Content).To(Equal("question"))
		})
	})

	Describe("request shape", func() {
		It("sends trimmed messages and custom headers by default", func() {
			server.Enqueue(testutil.Turn{Frames: []string{codec.FormatText("ok")}})

			c := newSession(func(o *ai.Options) {
				o.Headers = map[string]string{"Authorization": "Bearer test-token"}
				o.Body = map[string]any{"model": "test-model"}
			})

			Expect(c.Append(ctx, ai.Message{
				Role:    ai.RoleUser,
				Content: "hi",
				Name:    "alice",
			})).To(Succeed())

			requests := server.Requests()
			Expect(requests).To(HaveLen(1))
			Expect(requests[0].Headers.Get("Authorization")).To(Equal("Bearer test-token"))
			Expect(string(requests[0].Body["model"])).To(MatchJSON(`"test-model"`))

			var wire []map[string]json.RawMessage
			Expect(json.Unmarshal(requests[0].Body["messages"], &wire)).To(Succeed())
			Expect(wire[0]).NotTo(HaveKey("name"))
		})

		It("sends the full message shape when extra fields are enabled", func() {
			server.Enqueue(testutil.Turn{Frames: []string{codec.FormatText("ok")}})

			c := newSession(func(o *ai.Options) { o.SendExtraMessageFields = true })
			Expect(c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "hi", Name: "alice"})).To(Succeed())

			var wire []map[string]json.RawMessage
			Expect(json.Unmarshal(server.Requests()[0].Body["messages"], &wire)).To(Succeed())
			Expect(wire[0]).To(HaveKey("name"))
		})
	})

	Describe("slow streams", func() {
		It("commits each delta as it arrives", func() {
			server.Enqueue(testutil.Turn{
				Frames: []string{codec.FormatText("one "), codec.FormatText("two")},
				Delay:  50 * time.Millisecond,
			})

			c := newSession()
			var sawPartial bool
			unsubscribe := c.SubscribeAll(func(e ai.Event) {
				if e.Type != ai.EventMessagesUpdated {
					return
				}
				data := e.Data.(ai.MessagesUpdatedData)
				last := data.Messages[len(data.Messages)-1]
				if last.Role == ai.RoleAssistant && last.Content == "one " {
					sawPartial = true
				}
			})
			DeferCleanup(unsubscribe)

			Expect(c.Append(ctx, ai.Message{Role: ai.RoleUser, Content: "count"})).To(Succeed())
			Expect(sawPartial).To(BeTrue())
		})
	})
})
