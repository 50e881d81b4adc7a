package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"PocketChat/internal/backend"
	"PocketChat/internal/llm"
)

// Run starts the interactive terminal loop. It returns when the user
// quits or stdin is closed.
func (cb *ChatBot) Run(ctx context.Context) error {
	fmt.Printf("PocketChat ready (backend: %s). Type /help for commands.\n\n", cb.Backend())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := cb.handleCommand(ctx, input); quit {
				break
			}
			continue
		}

		reply, err := cb.Send(ctx, input, "", "")
		if err != nil {
			fmt.Printf("Error: %s\n\n", friendlyError(err))
			continue
		}
		fmt.Printf("Bot: %s\n\n", reply)
	}
	return scanner.Err()
}

// handleCommand dispatches a /command line and reports whether the
// loop should exit.
func (cb *ChatBot) handleCommand(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	command := parts[0]

	switch command {
	case "/quit", "/exit":
		fmt.Println("Goodbye!")
		return true

	case "/help":
		printHelp()

	case "/clear":
		cb.Clear()
		fmt.Println("Transcript cleared.")

	case "/switch":
		if len(parts) < 2 {
			fmt.Printf("Usage: /switch <%s>\n", strings.Join(backend.Names(), "|"))
			break
		}
		if err := cb.SetBackend(parts[1]); err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		fmt.Printf("Switched to %s.\n", parts[1])

	case "/model":
		if len(parts) < 2 {
			current := cb.Model()
			if current == "" {
				fmt.Println("Using the backend's default model.")
			} else {
				fmt.Printf("Current model: %s\n", current)
			}
			break
		}
		cb.SetModel(parts[1])
		fmt.Printf("Model set to %s.\n", parts[1])

	case "/models":
		cb.printModels(ctx)

	case "/instruction":
		if len(parts) < 2 {
			current := cb.SystemInstruction()
			if current == "" {
				fmt.Println("No system instruction set.")
			} else {
				fmt.Printf("System instruction: %s\n", current)
			}
			break
		}
		instruction := strings.TrimSpace(strings.TrimPrefix(input, command))
		if instruction == "-" {
			cb.SetSystemInstruction("")
			fmt.Println("System instruction cleared.")
			break
		}
		cb.SetSystemInstruction(instruction)
		fmt.Println("System instruction updated.")

	case "/usage":
		usage, count, err := cb.Usage(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		fmt.Printf("Exchanges: %d\n", count)
		fmt.Printf("Tokens: %d prompt + %d completion = %d total\n",
			usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)

	default:
		fmt.Printf("Unknown command: %s (try /help)\n", command)
	}

	fmt.Println()
	return false
}

// printModels lists the models available on the active backend. For
// Ollama the live server list is shown with sizes; other backends show
// the configured picker list.
func (cb *ChatBot) printModels(ctx context.Context) {
	completer, err := cb.registry.Get(cb.Backend())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	current := cb.Model()
	if o, ok := completer.(*backend.Ollama); ok {
		models, err := o.ListModels(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if len(models) == 0 {
			fmt.Println("No models installed.")
			return
		}
		fmt.Println("Available models:")
		for _, m := range models {
			marker := " "
			if m.Name == current {
				marker = "*"
			}
			sizeGB := float64(m.Size) / (1024 * 1024 * 1024)
			fmt.Printf(" %s %s (%.1f GB)\n", marker, m.Name, sizeGB)
		}
		return
	}

	fmt.Println("Available models:")
	for _, name := range cb.config.Models {
		marker := " "
		if name == current {
			marker = "*"
		}
		fmt.Printf(" %s %s\n", marker, name)
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /help          Show this help")
	fmt.Println("  /clear         Clear the transcript")
	fmt.Printf("  /switch NAME   Switch backend (%s)\n", strings.Join(backend.Names(), ", "))
	fmt.Println("  /model NAME    Set the model (no argument shows the current one)")
	fmt.Println("  /models        List available models")
	fmt.Println("  /instruction TEXT   Set the system instruction (- clears it)")
	fmt.Println("  /usage         Show token usage totals")
	fmt.Println("  /quit          Exit")
}

// friendlyError maps a typed failure to a short console hint. The
// full error is still logged.
func friendlyError(err error) string {
	switch {
	case errors.Is(err, llm.ErrBusy):
		return "a request is already in flight, wait for it to finish"
	case llm.IsAuthentication(err):
		return "the service rejected the credential"
	case llm.IsRateLimit(err):
		return "the service is rate limiting, try again shortly"
	case llm.IsConfiguration(err):
		return "configuration problem"
	default:
		return err.Error()
	}
}
