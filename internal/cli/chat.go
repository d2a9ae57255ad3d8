package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"
)

var (
	chatServerURL string
	chatModel     string
	chatSessionID string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat against a running proxy",
	Long: `Open an interactive chat session against a running HumeLink server.
The client speaks the same OpenAI chat completions format voice clients use,
so it doubles as an end-to-end smoke test of the proxy.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatServerURL, "server", "http://localhost:3000", "proxy server base URL")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "model override (defaults to the server's configured model)")
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "session id (defaults to a server-generated one)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	client := openai.NewClient(
		option.WithBaseURL(strings.TrimSuffix(chatServerURL, "/") + "/"),
		option.WithAPIKey("not-needed"),
	)

	fmt.Printf("Connected to %s. Type a message, or /quit to exit.\n\n", chatServerURL)

	var history []openai.ChatCompletionMessageParamUnion
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		history = append(history, openai.UserMessage(line))

		reply, err := streamCompletion(cmd.Context(), &client, history)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			// Drop the failed turn so the history stays consistent.
			history = history[:len(history)-1]
			continue
		}

		history = append(history, openai.AssistantMessage(reply))
	}

	return scanner.Err()
}

func streamCompletion(ctx context.Context, client *openai.Client, history []openai.ChatCompletionMessageParamUnion) (string, error) {
	opts := []option.RequestOption{}
	if chatSessionID != "" {
		opts = append(opts, option.WithJSONSet("session_id", chatSessionID))
	}

	stream := client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Messages: history,
		Model:    openai.ChatModel(chatModel),
	}, opts...)

	fmt.Print("assistant> ")
	var reply strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta != "" {
			fmt.Print(delta)
			reply.WriteString(delta)
		}
	}
	fmt.Println()

	if err := stream.Err(); err != nil {
		return "", err
	}
	return reply.String(), nil
}
