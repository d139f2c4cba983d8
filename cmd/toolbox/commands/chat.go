// ABOUTME: Chat commands keep local conversation history
// ABOUTME: Conversations hold ordered user, assistant, and system messages
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/toolbox/internal/apps/chat"
)

var chatRole string

// NewChatCmd creates the chat command group
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Manage chat history",
		Long: `Create conversations, append messages, and review history.

Examples:
  toolbox chat new "Trip planning"
  toolbox chat say <conversation-id> "Where should we go?"
  toolbox chat say <conversation-id> --role assistant "Lisbon."
  toolbox chat show <conversation-id>`,
	}

	cmd.AddCommand(
		newChatNewCmd(),
		newChatSayCmd(),
		newChatListCmd(),
		newChatShowCmd(),
		newChatRmCmd(),
	)
	return cmd
}

func withChat(cmd *cobra.Command, fn func(ctx context.Context, svc *chat.Service) error) error {
	m, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := commandContext(cmd)
	svc := chat.New(m)
	if err := svc.Init(ctx); err != nil {
		return err
	}
	return fn(ctx, svc)
}

func newChatNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new [title]",
		Short: "Start a conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChat(cmd, func(ctx context.Context, svc *chat.Service) error {
				c, err := svc.CreateConversation(ctx, strings.Join(args, " "))
				if err != nil {
					return fmt.Errorf("could not create conversation: %w", err)
				}
				if jsonOutput() {
					return printJSON(cmd, c)
				}
				fmt.Fprintln(cmd.OutOrStdout(), c.ID)
				return nil
			})
		},
	}
}

func newChatSayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "say <conversation-id> <message>",
		Short: "Append a message to a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChat(cmd, func(ctx context.Context, svc *chat.Service) error {
				msg, err := svc.AddMessage(ctx, args[0], chat.Role(chatRole), strings.Join(args[1:], " "))
				if errors.Is(err, chat.ErrNotFound) {
					return fmt.Errorf("conversation %s not found", args[0])
				}
				if err != nil {
					return fmt.Errorf("could not add message: %w", err)
				}
				if jsonOutput() {
					return printJSON(cmd, msg)
				}
				status(cmd, "Added %s message %s", msg.Role, msg.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&chatRole, "role", string(chat.RoleUser), "Message role: user, assistant, or system")
	return cmd
}

func newChatListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChat(cmd, func(ctx context.Context, svc *chat.Service) error {
				list, err := svc.Conversations(ctx)
				if err != nil {
					return fmt.Errorf("could not load conversations: %w", err)
				}
				if jsonOutput() {
					return printJSON(cmd, list)
				}
				if len(list) == 0 {
					status(cmd, "No conversations")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "ID\tTITLE\tMESSAGES\tUPDATED\n")
				for _, c := range list {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.ID, truncate(c.Title, 40), c.MessageCount, formatTime(c.UpdatedAt))
				}
				return w.Flush()
			})
		},
	}
}

func newChatShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChat(cmd, func(ctx context.Context, svc *chat.Service) error {
				c, err := svc.Conversation(ctx, args[0])
				if errors.Is(err, chat.ErrNotFound) {
					return fmt.Errorf("conversation %s not found", args[0])
				}
				if err != nil {
					return fmt.Errorf("could not load conversation: %w", err)
				}
				msgs, err := svc.Messages(ctx, c.ID)
				if err != nil {
					return fmt.Errorf("could not load messages: %w", err)
				}
				if jsonOutput() {
					return printJSON(cmd, map[string]interface{}{"conversation": c, "messages": msgs})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "# %s\n\n", c.Title)
				for _, msg := range msgs {
					fmt.Fprintf(out, "%s (%s):\n%s\n\n", msg.Role, formatTime(msg.CreatedAt), msg.Content)
				}
				return nil
			})
		},
	}
}

func newChatRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <conversation-id>",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChat(cmd, func(ctx context.Context, svc *chat.Service) error {
				if err := svc.DeleteConversation(ctx, args[0]); err != nil {
					return fmt.Errorf("could not delete conversation: %w", err)
				}
				status(cmd, "Deleted conversation %s", args[0])
				return nil
			})
		},
	}
}
