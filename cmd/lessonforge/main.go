// Command lessonforge runs an interactive lesson-production session on the
// terminal. Each line of input is treated as reviewer feedback for the
// workflow's current interrupt point; slash commands manage sessions.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lessonforge/lessonforge/flow"
	"github.com/lessonforge/lessonforge/flow/emit"
	"github.com/lessonforge/lessonforge/flow/store"
	"github.com/lessonforge/lessonforge/model"
	"github.com/lessonforge/lessonforge/model/anthropic"
	"github.com/lessonforge/lessonforge/model/google"
	"github.com/lessonforge/lessonforge/model/openai"
	"github.com/lessonforge/lessonforge/session"
	"github.com/lessonforge/lessonforge/workflow"
)

func main() {
	var (
		dbPath      = flag.String("db", "lessonforge.db", "path to the checkpoint database")
		sessionPath = flag.String("sessions", "sessions.db", "path to the chat/session database")
		provider    = flag.String("provider", "anthropic", "chat model provider: anthropic, openai, google, mock")
		modelName   = flag.String("model", "", "override the provider's default model")
		framework   = flag.String("framework", "framework.md", "path to the curriculum framework")
		deployDir   = flag.String("deploy-dir", "public", "directory webpages are deployed into")
		metricsAddr = flag.String("metrics", "", "address for the Prometheus /metrics endpoint (empty = disabled)")
		jsonLogs    = flag.Bool("json-logs", false, "emit events as JSON lines")
		verbose     = flag.Bool("v", false, "log workflow events to stderr")
	)
	flag.Parse()

	if err := run(*dbPath, *sessionPath, *provider, *modelName, *framework,
		*deployDir, *metricsAddr, *jsonLogs, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "lessonforge:", err)
		os.Exit(1)
	}
}

func run(dbPath, sessionPath, provider, modelName, framework, deployDir, metricsAddr string, jsonLogs, verbose bool) error {
	chat, err := newChatModel(provider, modelName)
	if err != nil {
		return err
	}

	var images workflow.ImageGenerator
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		gen, err := openai.NewImageGenerator(key, "")
		if err != nil {
			return err
		}
		images = gen
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := session.NewManager(sessionPath)
	if err != nil {
		return err
	}
	defer sessions.Close()

	graph, err := workflow.Build(&workflow.Nodes{
		Model:         chat,
		Images:        images,
		Deployer:      &workflow.LocalDeployer{Dir: deployDir},
		FrameworkPath: framework,
	})
	if err != nil {
		return err
	}

	opts := []flow.Option{}
	if verbose {
		opts = append(opts, flow.WithEmitter(emit.NewLogEmitter(os.Stderr, jsonLogs)))
	}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, flow.WithMetrics(flow.NewMetrics(reg)))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				fmt.Fprintln(os.Stderr, "lessonforge: metrics server:", err)
			}
		}()
	}

	engine, err := flow.New(graph, st, opts...)
	if err != nil {
		return err
	}

	return chatLoop(context.Background(), engine, sessions)
}

func newChatModel(provider, modelName string) (model.ChatModel, error) {
	switch provider {
	case "anthropic":
		return anthropic.NewChatModel(os.Getenv("ANTHROPIC_API_KEY"), modelName)
	case "openai":
		return openai.NewChatModel(os.Getenv("OPENAI_API_KEY"), modelName)
	case "google":
		return google.NewChatModel(os.Getenv("GOOGLE_API_KEY"), modelName), nil
	case "mock":
		return model.NewMock("(mock lesson draft)", "(mock webpage)"), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

const chatID = "terminal" // single-user CLI: one fixed chat

func chatLoop(ctx context.Context, engine *flow.Engine, sessions *session.Manager) error {
	fmt.Println("lessonforge ready. Commands: /new <theme>, /state, /done, /quit.")
	fmt.Println("Any other input is feedback for the current step, or starts a lesson on that theme when no session is open.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return nil

		case strings.HasPrefix(line, "/new"):
			theme := strings.TrimSpace(strings.TrimPrefix(line, "/new"))
			if theme == "" {
				fmt.Println("usage: /new <lesson theme>")
				continue
			}
			sessionID, err := sessions.Reset(ctx, chatID)
			if err != nil {
				return err
			}
			state, err := engine.Invoke(ctx, sessionID, flow.Patch{
				workflow.KeyTheme:        theme,
				workflow.KeyUserFeedback: "",
			})
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			report(state)

		case line == "/state":
			sessionID, err := sessions.Get(ctx, chatID)
			if errors.Is(err, session.ErrNotFound) {
				fmt.Println("no active session; start one with /new <theme>")
				continue
			}
			if err != nil {
				return err
			}
			state, pending, err := engine.Snapshot(ctx, sessionID)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Printf("session %s, next step: %s\n", sessionID, pending)
			report(state)

		case line == "/done":
			if err := sessions.Delete(ctx, chatID); err != nil {
				return err
			}
			fmt.Println("session closed.")

		default:
			sessionID, created, err := sessions.GetOrCreate(ctx, chatID)
			if err != nil {
				return err
			}
			if created {
				// First message with no open session starts a lesson on
				// that theme.
				state, err := engine.Invoke(ctx, sessionID, flow.Patch{
					workflow.KeyTheme:        line,
					workflow.KeyUserFeedback: "",
				})
				if err != nil {
					fmt.Println("error:", err)
					continue
				}
				report(state)
				continue
			}
			if err := engine.PatchState(ctx, sessionID, flow.Patch{
				workflow.KeyUserFeedback: line,
			}); err != nil {
				fmt.Println("error:", err)
				continue
			}
			state, err := engine.Invoke(ctx, sessionID, nil)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			report(state)
			if flow.IsTerminal(state) {
				fmt.Println("workflow complete.")
				if err := sessions.Delete(ctx, chatID); err != nil {
					return err
				}
			}
		}
	}
}

// report prints the artifact the user should review at the current stage.
func report(state flow.State) {
	if url, ok := state[workflow.KeyDeploymentURL].(string); ok && url != "" {
		fmt.Println("deployed:", url)
		fmt.Println("Reply with feedback about the page or its images, or approve it.")
		return
	}
	if draft, ok := state[workflow.KeyLessonDraft].(string); ok && draft != "" {
		fmt.Println("--- current draft ---")
		fmt.Println(draft)
		fmt.Println("---------------------")
		fmt.Println("Reply with revision feedback, or approve the draft.")
		return
	}
	fmt.Println("(no output yet)")
}
