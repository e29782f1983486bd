package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/mail"
	"github.com/legio/legio/internal/store"
)

var mailCmd = &cobra.Command{
	Use:     "mail",
	GroupID: GroupComms,
	Short:   "Send and inspect inter-agent mail",
}

var (
	mailFrom string
	mailTo   string
	mailType string
)

var mailSendCmd = &cobra.Command{
	Use:   "send <subject> <body>",
	Short: "Send a mail message, expanding @all/@<capability> group addresses",
	Args:  cobra.ExactArgs(2),
	RunE:  runMailSend,
}

var mailListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent mail",
	RunE:  runMailList,
}

var mailCheckAgent string

var mailCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "List unread mail for an agent",
	RunE:  runMailCheck,
}

var mailReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Show a message and mark it read",
	Args:  cobra.ExactArgs(1),
	RunE:  runMailRead,
}

var mailReplyCmd = &cobra.Command{
	Use:   "reply <id> <body>",
	Short: "Reply in the same thread as an existing message",
	Args:  cobra.ExactArgs(2),
	RunE:  runMailReply,
}

func init() {
	mailSendCmd.Flags().StringVar(&mailFrom, "from", "operator", "sender agent name or address")
	mailSendCmd.Flags().StringVar(&mailTo, "to", "", "recipient: an agent name or @all/@<capability>")
	mailSendCmd.Flags().StringVar(&mailType, "type", string(store.MsgStatus), "message type")
	mailSendCmd.MarkFlagRequired("to")

	mailCheckCmd.Flags().StringVar(&mailCheckAgent, "agent", "", "agent to check unread mail for")
	mailCheckCmd.MarkFlagRequired("agent")

	mailCmd.AddCommand(mailSendCmd, mailListCmd, mailCheckCmd, mailReadCmd, mailReplyCmd)
	rootCmd.AddCommand(mailCmd)
}

func runMailSend(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	mailStore, err := store.OpenMailStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer mailStore.Close()

	sessions, err := store.OpenSessionStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer sessions.Close()

	router := mail.NewRouter(mailStore, sessions)
	sent, err := router.Send(context.Background(), mail.Draft{
		From:    mailFrom,
		To:      mailTo,
		Subject: args[0],
		Body:    args[1],
		Type:    store.MessageType(mailType),
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(sent)
	}
	fmt.Printf("sent to %d recipient(s)\n", len(sent))
	return nil
}

func runMailList(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	mailStore, err := store.OpenMailStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer mailStore.Close()

	messages, err := mailStore.GetAll(context.Background(), store.Filter{})
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(messages)
	}
	for _, m := range messages {
		fmt.Printf("%s\t%s -> %s\t%s\n", m.CreatedAt.Format("15:04:05"), m.From, m.To, m.Subject)
	}
	return nil
}

func runMailCheck(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	mailStore, err := store.OpenMailStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer mailStore.Close()

	messages, err := mailStore.GetUnread(context.Background(), mailCheckAgent)
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(messages)
	}
	if len(messages) == 0 {
		fmt.Println("no unread mail")
		return nil
	}
	for _, m := range messages {
		fmt.Printf("%s\t%s -> %s\t%s\t%s\n", m.ID, m.From, m.To, m.Subject, m.CreatedAt.Format("15:04:05"))
	}
	return nil
}

func runMailRead(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	mailStore, err := store.OpenMailStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer mailStore.Close()

	ctx := context.Background()
	m, err := mailStore.GetByID(ctx, args[0])
	if err != nil {
		return err
	}
	if err := mailStore.MarkRead(ctx, m.ID); err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(m)
	}
	fmt.Printf("From: %s\nTo: %s\nSubject: %s\nType: %s\n\n%s\n", m.From, m.To, m.Subject, m.Type, m.Body)
	return nil
}

func runMailReply(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	mailStore, err := store.OpenMailStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer mailStore.Close()

	sessions, err := store.OpenSessionStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer sessions.Close()

	ctx := context.Background()
	original, err := mailStore.GetByID(ctx, args[0])
	if err != nil {
		return err
	}

	router := mail.NewRouter(mailStore, sessions)
	sent, err := router.Reply(ctx, original, "Re: "+original.Subject, args[1], "")
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(sent)
	}
	fmt.Println("sent reply", sent.ID)
	return nil
}
