package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nikitkaralius/pollmate/internal/access"
	"github.com/nikitkaralius/pollmate/internal/chat"
	"github.com/nikitkaralius/pollmate/internal/envelope"
	"github.com/nikitkaralius/pollmate/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant from the terminal",
	Long: `Start a local chat session against the configured storage and LLM.

Type /reset to start over and /quit to leave.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("role", string(access.RoleUser), "Role of the local participant: admin or user")
	chatCmd.Flags().String("name", "", "Display name of the local participant")
	chatCmd.Flags().String("user-id", "local", "Voter id; empty means not signed in")
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateChat(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	roleFlag, _ := cmd.Flags().GetString("role")
	name, _ := cmd.Flags().GetString("name")
	userID, _ := cmd.Flags().GetString("user-id")
	caller := access.Caller{ID: userID, Name: name, Role: access.ParseRole(roleFlag)}

	sess := st.sessions.Get("cli_"+userID, caller.Role, caller.Name)
	prompt := color.New(color.FgHiCyan).Add(color.Bold).Sprint("you> ")
	fmt.Println(color.GreenString(session.Greeting(caller.Role)))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(prompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := st.orchestrator.Reset(ctx, sess, caller.Role, caller.Name); err != nil {
				return err
			}
			fmt.Println(color.GreenString(session.Greeting(caller.Role)))
			continue
		}

		env := st.orchestrator.Handle(ctx, sess, chat.Input{Text: line, Caller: caller})
		fmt.Println(envelope.Render(env))
		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}
