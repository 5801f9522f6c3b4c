package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danhigham/quickchat/internal/domain"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print incoming messages and presence changes until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.logger.Sync()

		if err := e.restore(ctx); err != nil {
			return err
		}
		s := e.mgr.Session()
		peers, _, err := e.mgr.Client().Users(ctx)
		if err != nil {
			return err
		}

		p := &printer{self: s.UserID(), names: make(map[string]string, len(peers))}
		for _, peer := range peers {
			p.names[peer.ID] = peer.DisplayName
		}

		ch := e.channel()
		defer ch.Close()
		ch.Open(s.UserID(), s.Token, p)

		fmt.Printf("Watching as %s. Press Ctrl+C to stop.\n", s.Profile.FullName)
		<-ctx.Done()
		e.logger.Info("Watch interrupted", zap.Error(ctx.Err()))
		return nil
	},
}

// printer writes channel events to stdout. The channel calls it from a
// single goroutine.
type printer struct {
	self   string
	names  map[string]string
	online []string
}

func (p *printer) name(id string) string {
	if n := p.names[id]; n != "" {
		return n
	}
	return id
}

func (p *printer) OnMessage(msg domain.Message) {
	fmt.Println(formatMessage(msg, p.self, p.name))
}

func (p *printer) OnPresence(online domain.PresenceSet) {
	var names []string
	for _, id := range online {
		if id != p.self {
			names = append(names, p.name(id))
		}
	}
	slices.Sort(names)
	if slices.Equal(names, p.online) {
		return
	}
	p.online = names
	if len(names) == 0 {
		fmt.Println("* online: nobody")
		return
	}
	fmt.Printf("* online: %s\n", strings.Join(names, ", "))
}

func (p *printer) OnReconnected() {
	fmt.Println("* connected")
}

func (p *printer) OnChannelError(err error) {
	fmt.Printf("! %s, still retrying\n", err)
}
