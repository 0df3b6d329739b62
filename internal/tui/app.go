package tui

import (
	"context"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/gindriliunas/whatsapp-clone/internal/bus"
	"github.com/gindriliunas/whatsapp-clone/internal/chat"
	"github.com/gindriliunas/whatsapp-clone/internal/compose"
	"github.com/gindriliunas/whatsapp-clone/internal/identity"
	"github.com/gindriliunas/whatsapp-clone/internal/tui/views"
)

const flashDuration = 5 * time.Second

// Params carries the App's collaborators.
type Params struct {
	Reconciler *chat.Reconciler
	Provider   identity.Provider
	Compose    *compose.Machine
	Bus        *bus.Bus
	Logger     *zap.Logger
	Mode       string // "local" or "remote", shown in the status bar
}

// App is the two-pane TUI shell: conversation list on one page, the active
// thread with its composer on another, sign-in on a third.
type App struct {
	app   *tview.Application
	pages *tview.Pages

	reconciler *chat.Reconciler
	provider   identity.Provider
	composeM   *compose.Machine
	bus        *bus.Bus
	logger     *zap.Logger
	flash      flash

	statusBar *views.StatusBar
	list      *views.ConversationList
	thread    *views.Thread
	composer  *views.Composer
	auth      *views.Auth
	newChat   *views.NewChatPrompt

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	self       string
	activeConv string
	activePeer chat.Profile
	listSub    *chat.ListSubscription
	msgSub     *chat.MessageSubscription
}

// NewApp creates the TUI application.
func NewApp(p Params) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		reconciler: p.Reconciler,
		provider:   p.Provider,
		composeM:   p.Compose,
		bus:        p.Bus,
		logger:     p.Logger,
		statusBar:  views.NewStatusBar(),
		list:       views.NewConversationList(),
		thread:     views.NewThread(),
		composer:   views.NewComposer(),
		auth:       views.NewAuth(),
		newChat:    views.NewNewChatPrompt(),
		ctx:        ctx,
		cancel:     cancel,
	}

	a.statusBar.SetMode(p.Mode)
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupCallbacks() {
	a.list.SetOnSelect(func(entry chat.ListEntry) {
		a.openConversation(entry.Conversation.ID, entry.Peer)
	})

	a.composer.SetOnSend(func(text string) { a.send(text) })

	a.newChat.SetOnSubmit(func(target string) { a.startChat(target) })
	a.newChat.SetOnCancel(func() {
		a.pages.SwitchToPage("list")
		a.app.SetFocus(a.list.Table)
	})
}

func (a *App) setupLayout() {
	threadFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("auth", a.auth, true, true)
	a.pages.AddPage("list", a.list, true, false)
	a.pages.AddPage("thread", threadFlex, true, false)
	a.pages.AddPage("new", a.newChat, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	currentPage, _ := a.pages.GetFrontPage()

	if event.Key() == tcell.KeyEscape {
		switch currentPage {
		case "thread":
			a.closeConversation()
			a.pages.SwitchToPage("list")
			a.app.SetFocus(a.list.Table)
			return nil
		case "new":
			a.newChat.Reset()
			a.pages.SwitchToPage("list")
			a.app.SetFocus(a.list.Table)
			return nil
		case "list":
			if a.app.GetFocus() == a.list.Filter {
				a.list.Filter.SetText("")
				a.app.SetFocus(a.list.Table)
				return nil
			}
		}
	}

	// Text inputs take every key.
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		return event
	}

	if event.Key() != tcell.KeyRune {
		return event
	}
	switch {
	case event.Rune() == 'q':
		a.Stop()
		return nil
	case currentPage == "list" && event.Rune() == 'n':
		a.newChat.Reset()
		a.pages.SwitchToPage("new")
		a.app.SetFocus(a.newChat.Input)
		return nil
	case currentPage == "list" && event.Rune() == '/':
		a.app.SetFocus(a.list.Filter)
		return nil
	case currentPage == "list" && event.Rune() == 'O':
		a.signOut()
		return nil
	case currentPage == "thread" && event.Rune() == 'i':
		a.app.SetFocus(a.composer.InputField)
		return nil
	}
	return event
}

// Run starts the application: restore or run the sign-in flow, then hand the
// terminal to tview.
func (a *App) Run() error {
	if acct := a.provider.Current(); acct != nil {
		a.onSignedIn(acct)
	} else {
		go a.signIn()
	}

	a.startRefreshLoop()
	a.watchConnection()

	return a.app.Run()
}

// Stop tears the application down.
func (a *App) Stop() {
	a.closeConversation()
	a.mu.Lock()
	if a.listSub != nil {
		a.listSub.Cancel()
		a.listSub = nil
	}
	a.mu.Unlock()
	a.cancel()
	a.app.Stop()
}

// Prompt returns the identity prompt that renders device-flow verification
// details on the auth page.
func (a *App) Prompt() identity.Prompt {
	return func(verificationURL, userCode string) {
		a.app.QueueUpdateDraw(func() {
			a.pages.SwitchToPage("auth")
			a.auth.ShowVerification(verificationURL, userCode)
		})
	}
}

func (a *App) signIn() {
	a.app.QueueUpdateDraw(func() {
		a.pages.SwitchToPage("auth")
		a.auth.ShowMessage("Starting sign-in...")
	})

	acct, err := a.provider.SignIn(a.ctx)
	if err != nil {
		a.logger.Warn("sign-in failed", zap.Error(err))
		a.app.QueueUpdateDraw(func() {
			a.auth.ShowMessage("Sign-in failed: " + err.Error() + "\n\nPress q to quit.")
		})
		return
	}

	if err := a.reconciler.RecordSignIn(a.ctx, acct.Email, acct.DisplayName, acct.AvatarURL); err != nil {
		a.logger.Warn("profile update failed", zap.Error(err))
	}
	a.onSignedIn(acct)
}

func (a *App) onSignedIn(acct *identity.Account) {
	self := chat.NormalizeID(acct.Email)
	a.mu.Lock()
	a.self = self
	a.mu.Unlock()

	a.thread.SetSelf(self)
	a.statusBar.SetAccount(self)
	a.startList(self)

	a.app.QueueUpdateDraw(func() {
		a.pages.SwitchToPage("list")
		a.app.SetFocus(a.list.Table)
	})
}

func (a *App) signOut() {
	a.mu.Lock()
	self := a.self
	a.mu.Unlock()

	go func() {
		if err := a.reconciler.RecordSignOut(a.ctx, self); err != nil {
			a.logger.Warn("sign-out profile update failed", zap.Error(err))
		}
		if err := a.provider.SignOut(a.ctx); err != nil {
			a.flash.set("Sign-out failed: "+err.Error(), flashDuration)
			return
		}
		a.closeConversation()
		a.mu.Lock()
		if a.listSub != nil {
			a.listSub.Cancel()
			a.listSub = nil
		}
		a.self = ""
		a.mu.Unlock()
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetAccount("")
			a.list.Update(nil)
		})
		a.signIn()
	}()
}

func (a *App) startList(self string) {
	sub, err := a.reconciler.ConversationList(self)
	if err != nil {
		a.flash.set("Could not load conversations: "+err.Error(), flashDuration)
		return
	}
	a.mu.Lock()
	a.listSub = sub
	a.mu.Unlock()

	go func() {
		for entries := range sub.C {
			entries := entries
			a.app.QueueUpdateDraw(func() {
				a.list.Update(entries)
				a.refreshActivePeer(entries)
			})
		}
	}()
}

// refreshActivePeer keeps the open thread's header current as profile
// enrichment catches up.
func (a *App) refreshActivePeer(entries []chat.ListEntry) {
	a.mu.Lock()
	active := a.activeConv
	a.mu.Unlock()
	if active == "" {
		return
	}
	for _, e := range entries {
		if e.Conversation.ID == active {
			a.mu.Lock()
			a.activePeer = e.Peer
			a.mu.Unlock()
			a.thread.SetPeer(e.Peer)
			return
		}
	}
}

func (a *App) openConversation(id string, peer chat.Profile) {
	a.closeConversation()

	sub, err := a.reconciler.Messages(id)
	if err != nil {
		a.flash.set("Could not open chat: "+err.Error(), flashDuration)
		return
	}

	a.mu.Lock()
	a.activeConv = id
	a.activePeer = peer
	a.msgSub = sub
	a.mu.Unlock()

	a.thread.SetPeer(peer)
	a.thread.Update(nil)
	a.pages.SwitchToPage("thread")
	a.app.SetFocus(a.composer.InputField)

	go func() {
		for msgs := range sub.C {
			msgs := msgs
			a.app.QueueUpdateDraw(func() {
				a.mu.Lock()
				current := a.activeConv
				a.mu.Unlock()
				if current == id {
					a.thread.Update(msgs)
				}
			})
		}
	}()
}

func (a *App) closeConversation() {
	a.mu.Lock()
	sub := a.msgSub
	a.msgSub = nil
	a.activeConv = ""
	a.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

func (a *App) startChat(target string) {
	a.mu.Lock()
	self := a.self
	a.mu.Unlock()

	go func() {
		id, err := a.reconciler.ResolveOrCreate(a.ctx, self, target)
		if err != nil {
			a.flash.set("Could not start chat: "+err.Error(), flashDuration)
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.flash.get())
			})
			return
		}

		peer, ok := a.reconciler.Profile(target)
		if !ok {
			normalized := chat.NormalizeID(target)
			peer = chat.Profile{ID: normalized, DisplayName: normalized}
		}
		a.app.QueueUpdateDraw(func() {
			a.newChat.Reset()
			a.openConversation(id, peer)
		})
	}()
}

func (a *App) send(text string) {
	a.mu.Lock()
	conv, self := a.activeConv, a.self
	a.mu.Unlock()
	if conv == "" {
		return
	}

	if err := a.composeM.Begin(text); err != nil {
		a.flash.set("Still sending the previous message", flashDuration)
		return
	}
	a.composer.SetText("")

	go func() {
		err := a.reconciler.PostMessage(a.ctx, conv, self, text)
		if err != nil {
			_ = a.composeM.Fail()
			a.flash.set("Could not send message: "+err.Error(), flashDuration)
			a.app.QueueUpdateDraw(func() {
				a.composer.Restore(a.composeM.PendingBody())
				a.statusBar.SetFlash(a.flash.get())
			})
			_ = a.composeM.Acknowledge()
			return
		}
		_ = a.composeM.Succeed()
		_ = a.composeM.Acknowledge()
	}()
}

// startRefreshLoop keeps the status bar clock and flash expiry current.
func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.app.QueueUpdateDraw(func() {
					a.statusBar.SetFlash(a.flash.get())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// watchConnection surfaces remote store connection loss in the status bar.
func (a *App) watchConnection() {
	events, unsub := a.bus.Subscribe("conn.", 8)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-events:
				if evt.Kind == "conn.lost" {
					a.flash.set("Connection lost; restart to reconnect", time.Minute)
				}
			case <-a.ctx.Done():
				return
			}
		}
	}()
}
