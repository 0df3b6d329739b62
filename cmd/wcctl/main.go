package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gindriliunas/whatsapp-clone/internal/app"
	"github.com/gindriliunas/whatsapp-clone/internal/bus"
	"github.com/gindriliunas/whatsapp-clone/internal/chat"
	"github.com/gindriliunas/whatsapp-clone/internal/config"
	"github.com/gindriliunas/whatsapp-clone/internal/identity"
	"github.com/gindriliunas/whatsapp-clone/internal/paths"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(paths.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	profile := cfg.DefaultProfile
	if *profileFlag != "" {
		profile = *profileFlag
	}
	if err := paths.ValidateProfileName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch args[0] {
	case "init":
		cmdInit(cfg)
	case "profiles":
		cmdProfiles(*jsonFlag)
	case "status":
		cmdStatus(cfg, profile, *jsonFlag)
	case "chats":
		cmdChats(cfg, profile, *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: wcctl send <email> <message>")
			os.Exit(1)
		}
		cmdSend(cfg, profile, args[1], args[2])
	case "signout":
		cmdSignOut(cfg, profile)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wcctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  init               Write a default config file")
	fmt.Fprintln(os.Stderr, "  profiles           List known profiles")
	fmt.Fprintln(os.Stderr, "  status             Show account and store status")
	fmt.Fprintln(os.Stderr, "  chats              List conversations")
	fmt.Fprintln(os.Stderr, "  send <email> <msg> Send a message")
	fmt.Fprintln(os.Stderr, "  signout            Clear cached credentials")
}

// openReconciler opens the configured store and builds a reconciler over it.
// Caller must invoke the returned cleanup.
func openReconciler(cfg *config.Config, profile string) (*chat.Reconciler, func(), error) {
	logger := zap.NewNop()
	h, err := app.OpenStore(app.Params{Profile: profile}, cfg, bus.New(), logger)
	if err != nil {
		return nil, nil, err
	}
	return chat.NewReconciler(h.Store, logger), func() { _ = h.Shutdown() }, nil
}

// currentAccount restores the cached sign-in for CLI use; no interactive flow.
func currentAccount(profile string) (*identity.Account, error) {
	df := identity.NewDeviceFlow("", "", "", paths.TokenPath(profile), nil, nil, zap.NewNop())
	acct := df.Restore()
	if acct == nil {
		return nil, fmt.Errorf("not signed in; run wctui first")
	}
	return acct, nil
}

func cmdInit(cfg *config.Config) {
	path := paths.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "error: %s already exists\n", path)
		os.Exit(1)
	}
	if err := config.Save(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}

func cmdProfiles(jsonOut bool) {
	entries, err := os.ReadDir(paths.ProfilesDir())
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if jsonOut {
		outputJSON(names)
		return
	}
	if len(names) == 0 {
		fmt.Println("No profiles found.")
		return
	}
	for _, n := range names {
		fmt.Printf("%-20s %s\n", n, paths.ProfileDir(n))
	}
}

func cmdStatus(cfg *config.Config, profile string, jsonOut bool) {
	type status struct {
		Profile string `json:"profile"`
		Store   string `json:"store"`
		Account string `json:"account"`
	}
	st := status{Profile: profile, Store: cfg.Store}
	if acct, err := currentAccount(profile); err == nil {
		st.Account = acct.Email
	}
	if jsonOut {
		outputJSON(st)
		return
	}
	fmt.Printf("Profile: %s\n", st.Profile)
	fmt.Printf("Store:   %s\n", st.Store)
	if st.Account == "" {
		fmt.Println("Account: (signed out)")
	} else {
		fmt.Printf("Account: %s\n", st.Account)
	}
}

func cmdChats(cfg *config.Config, profile string, jsonOut bool) {
	acct, err := currentAccount(profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	r, cleanup, err := openReconciler(cfg, profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	sub, err := r.ConversationList(acct.Email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer sub.Cancel()

	select {
	case entries := <-sub.C:
		if jsonOut {
			outputJSON(entries)
			return
		}
		if len(entries) == 0 {
			fmt.Println("No conversations.")
			return
		}
		for _, e := range entries {
			name := e.Peer.DisplayName
			if name == "" {
				name = e.Peer.ID
			}
			when := ""
			if !e.Conversation.LastActivity.IsZero() {
				when = e.Conversation.LastActivity.Format("2006-01-02 15:04")
			}
			fmt.Printf("%-30s %-40.40s %s\n", name, e.Conversation.LastMessagePreview, when)
		}
	case <-time.After(10 * time.Second):
		fmt.Fprintln(os.Stderr, "error: timed out waiting for conversations")
		os.Exit(1)
	}
}

func cmdSend(cfg *config.Config, profile, target, body string) {
	acct, err := currentAccount(profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	r, cleanup, err := openReconciler(cfg, profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := r.ResolveOrCreate(ctx, acct.Email, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := r.PostMessage(ctx, id, acct.Email, body); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sent to %s (conversation %s)\n", chat.NormalizeID(target), id)
}

func cmdSignOut(cfg *config.Config, profile string) {
	acct, err := currentAccount(profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if r, cleanup, err := openReconciler(cfg, profile); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = r.RecordSignOut(ctx, acct.Email)
		cancel()
		cleanup()
	}

	if err := os.Remove(paths.TokenPath(profile)); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Signed out.")
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
