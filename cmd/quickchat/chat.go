package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/danhigham/quickchat/internal/api"
	"github.com/danhigham/quickchat/internal/domain"
)

var (
	sendImage   string
	historyLast int
)

func init() {
	sendCmd.Flags().StringVar(&sendImage, "image", "", "send the image file at this path instead of text")
	historyCmd.Flags().IntVarP(&historyLast, "last", "n", 0, "only show the last n messages")

	rootCmd.AddCommand(peersCmd, historyCmd, sendCmd)
}

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List the users you can chat with",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.logger.Sync()

		if err := e.restore(cmd.Context()); err != nil {
			return err
		}
		peers, unseen, err := e.mgr.Client().Users(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tUNSEEN\tBIO")
		for _, p := range peers {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.ID, p.DisplayName, unseen[p.ID], p.Bio)
		}
		return w.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <peer-id>",
	Short: "Print the conversation with a peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.logger.Sync()

		if err := e.restore(cmd.Context()); err != nil {
			return err
		}
		self := e.mgr.Session().UserID()
		client := e.mgr.Client()
		msgs, err := client.Messages(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		peerName := args[0]
		if peers, _, err := client.Users(cmd.Context()); err == nil {
			for _, p := range peers {
				if p.ID == args[0] && p.DisplayName != "" {
					peerName = p.DisplayName
				}
			}
		}
		name := func(string) string { return peerName }
		if historyLast > 0 && len(msgs) > historyLast {
			msgs = msgs[len(msgs)-historyLast:]
		}
		for _, m := range msgs {
			fmt.Println(formatMessage(m, self, name))
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <peer-id> [text...]",
	Short: "Send a text or image message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := domain.OutgoingMessage{Text: strings.Join(args[1:], " ")}
		switch {
		case sendImage != "" && out.Text != "":
			return errors.New("give either text or --image, not both")
		case sendImage != "":
			img, err := api.ImageDataURL(sendImage)
			if err != nil {
				return err
			}
			out.Image = img
		case strings.TrimSpace(out.Text) == "":
			return errors.New("nothing to send")
		}

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.logger.Sync()

		if err := e.restore(cmd.Context()); err != nil {
			return err
		}
		msg, err := e.mgr.Client().Send(cmd.Context(), args[0], out)
		if err != nil {
			return err
		}
		fmt.Printf("Sent %s\n", msg.ID)
		return nil
	},
}

// formatMessage renders one message as a single line.
func formatMessage(m domain.Message, self string, name func(id string) string) string {
	who := "you"
	if m.SenderID != self {
		who = name(m.SenderID)
	}
	body := m.Text
	if m.IsImage() {
		body = "[image]"
	}
	seen := ""
	if m.SenderID == self && m.Seen {
		seen = " (seen)"
	}
	return fmt.Sprintf("%s  %s: %s%s", m.CreatedAt.Local().Format("2006-01-02 15:04"), who, body, seen)
}
