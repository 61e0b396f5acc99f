// Package main is a terminal chat client that pays for every message from a
// node-managed account and talks to the Conversation Service.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"paidchat/internal/agents"
	"paidchat/internal/balance"
	"paidchat/internal/chain"
	"paidchat/internal/chatapi"
	"paidchat/internal/config"
	"paidchat/internal/cost"
	"paidchat/internal/domain"
	"paidchat/internal/orchestrator"
	"paidchat/internal/payment"
	"paidchat/internal/pricing"
)

var (
	userColor  = color.New(color.FgCyan, color.Bold)
	agentColor = color.New(color.FgMagenta, color.Bold)
	infoColor  = color.New(color.FgHiBlack)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
	winColor   = color.New(color.FgHiYellow, color.Bold)
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "ignoring .env: %v\n", err)
	}

	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("PAIDCHAT_RPC_ENDPOINT"), "EVM JSON-RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("PAIDCHAT_WS_ENDPOINT"), "EVM JSON-RPC WebSocket endpoint (optional)")
	apiURL := flag.String("api-url", config.Env("PAIDCHAT_API_URL", "http://localhost:8080"), "Conversation Service base URL")
	from := flag.String("from", os.Getenv("PAIDCHAT_ACCOUNT"), "Node-managed account that pays for messages")
	chainsFile := flag.String("chains", config.Env("PAIDCHAT_CHAINS_FILE", "chains.yaml"), "YAML chain table override")
	cgKey := flag.String("coingecko-api-key", os.Getenv("COINGECKO_API_KEY"), "CoinGecko demo API key")
	agentID := flag.String("agent", "", "Agent to talk to (default: first listed)")
	confirmTimeout := flag.Duration("confirm-timeout", config.EnvDuration("PAIDCHAT_CONFIRM_TIMEOUT", 2*time.Minute), "Payment confirmation timeout")
	verbose := flag.Bool("v", false, "Log component activity to stderr")
	flag.Parse()

	if *rpcEndpoint == "" {
		fatal("--rpc-endpoint is required")
	}
	if !chain.IsHexAddress(*from) {
		fatal("--from must be a 0x-prefixed account address")
	}

	logOut := io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	newLogger := func(component string) *log.Logger {
		return log.New(logOut, "["+component+"] ", log.LstdFlags)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	chains, err := config.LoadChains(*chainsFile)
	if err != nil {
		fatal("load chains: %v", err)
	}

	rpc := chain.NewHTTPClient(*rpcEndpoint)
	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		fatal("eth_chainId: %v", err)
	}
	ch, supported := chains.Lookup(chainID)
	if !supported {
		warnColor.Printf("Chain %d has no payment destination; sending is disabled.\n", chainID)
	}

	var heads chain.HeadSource
	if *wsEndpoint != "" {
		ws, err := chain.NewWSClient(ctx, *wsEndpoint, nil, newLogger("ws"))
		if err != nil {
			warnColor.Printf("WebSocket unavailable, polling receipts instead: %v\n", err)
		} else {
			defer ws.Close()
			heads = ws
		}
	}

	cache, err := pricing.NewCache()
	if err != nil {
		fatal("price cache: %v", err)
	}
	defer cache.Close()

	fetchOpts := []pricing.CoinGeckoOption{}
	if *cgKey != "" {
		fetchOpts = append(fetchOpts, pricing.WithAPIKey(*cgKey))
	}
	oracle, err := pricing.NewOracle(pricing.Options{
		Fetcher:      pricing.NewCoinGecko(fetchOpts...),
		Cache:        cache,
		LastKnownUSD: pricing.DefaultLastKnownUSD,
		Logger:       newLogger("oracle"),
	})
	if err != nil {
		fatal("price oracle: %v", err)
	}
	if supported {
		go oracle.Run(ctx, []string{ch.Symbol})
	}

	service := chatapi.NewHTTPClient(*apiURL)
	repo := agents.NewRepository(service, newLogger("agents"))
	if err := repo.Refresh(ctx); err != nil {
		warnColor.Printf("Agent list unavailable, using %s: %v\n", domain.DefaultAgent.Name, err)
	}
	if *agentID != "" {
		if err := repo.Select(*agentID); err != nil {
			fatal("select agent: %v", err)
		}
	}

	wallet := orchestrator.NewAccountWallet(*from, chainID)
	session := orchestrator.New(orchestrator.Options{
		Wallet: wallet,
		Chains: chains,
		Guard:  balance.NewGuard(chains, rpc, cost.NewEstimator(oracle, rpc)),
		Payer: payment.NewSubmitter(rpc, payment.Options{
			ConfirmTimeout: *confirmTimeout,
			Heads:          heads,
			Logger:         newLogger("payment"),
		}),
		Service: service,
		Agents:  repo,
		OnTransition: func(_, to orchestrator.State) {
			if *verbose {
				infoColor.Printf("  · %s\n", to)
			}
		},
		OnWin: func(a domain.Agent, _ domain.Message) {
			winColor.Printf("★ %s said a restricted phrase! Prize pool: $%.2f\n", a.Name, a.PrizePool)
		},
		Logger: newLogger("session"),
	})

	c := &cli{session: session, repo: repo, chain: ch, supported: supported, out: os.Stdout}
	c.banner(ctx)
	c.loop(ctx, os.Stdin)
}

type cli struct {
	session   *orchestrator.Session
	repo      *agents.Repository
	chain     domain.Chain
	supported bool
	out       io.Writer
}

func (c *cli) agent() domain.Agent {
	if a, ok := c.repo.Selected(); ok {
		return a
	}
	return domain.DefaultAgent
}

func (c *cli) banner(ctx context.Context) {
	a := c.agent()
	fmt.Fprintf(c.out, "Chatting with %s on %s (%d).\n", agentColor.Sprint(a.Name), c.chain.Name, c.chain.ID)
	fmt.Fprintln(c.out, infoColor.Sprint("Commands: /agents, /agent <id>, /balance, /history, /quit"))
	c.load(ctx)
	c.showBalance(ctx)
}

func (c *cli) loop(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(c.out, userColor.Sprint("> "))
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !c.handle(ctx, strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// handle runs one input line; false ends the session.
func (c *cli) handle(ctx context.Context, line string) bool {
	switch {
	case line == "":
		return true
	case line == "/quit" || line == "/exit":
		return false
	case line == "/agents":
		c.listAgents()
	case strings.HasPrefix(line, "/agent "):
		id := strings.TrimSpace(strings.TrimPrefix(line, "/agent "))
		if err := c.repo.Select(id); err != nil {
			errColor.Fprintf(c.out, "%v\n", err)
			return true
		}
		fmt.Fprintf(c.out, "Now chatting with %s.\n", agentColor.Sprint(c.agent().Name))
		c.load(ctx)
	case line == "/balance":
		c.showBalance(ctx)
	case line == "/history":
		c.printHistory()
	default:
		c.send(ctx, line)
	}
	return true
}

func (c *cli) send(ctx context.Context, text string) {
	a := c.agent()
	c.session.SetInput(text)
	infoColor.Fprintf(c.out, "Paying $%.2f in %s...\n", c.session.MessageCost(a.ID), c.chain.Symbol)

	st, err := c.session.Send(ctx, a.ID)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrInsufficientFunds):
			errColor.Fprintln(c.out, "Insufficient balance for this message.")
		case errors.Is(err, orchestrator.ErrDeliveryFailedAfterPayment):
			warnColor.Fprintf(c.out, "Paid (%s) but the service did not answer; your message is kept.\n", st.TxHash)
		case errors.Is(err, orchestrator.ErrTransactionFailed):
			errColor.Fprintf(c.out, "Payment failed, message withdrawn: %v\n", err)
		default:
			errColor.Fprintf(c.out, "%v\n", err)
		}
		return
	}

	okColor.Fprintf(c.out, "Paid in %s.\n", st.TxHash)
	if st.Reply != nil {
		fmt.Fprintf(c.out, "%s %s\n", agentColor.Sprint(st.Reply.Name+":"), st.Reply.Content)
	}
	c.repo.UpdateCost(a.ID, st.Cost)
	infoColor.Fprintf(c.out, "Next message: $%.2f\n", st.Cost)
}

func (c *cli) load(ctx context.Context) {
	a := c.agent()
	if err := c.session.Load(ctx, a.ID); err != nil {
		warnColor.Fprintf(c.out, "History unavailable: %v\n", err)
		return
	}
	infoColor.Fprintf(c.out, "%d messages, next costs $%.2f\n", len(c.session.Messages(a.ID)), c.session.MessageCost(a.ID))
}

func (c *cli) showBalance(ctx context.Context) {
	if !c.supported {
		warnColor.Fprintln(c.out, "Unsupported chain: balance check disabled.")
		return
	}
	check, err := c.session.RefreshBalance(ctx, c.agent().ID)
	if err != nil {
		warnColor.Fprintf(c.out, "Balance unavailable: %v\n", err)
		return
	}
	status := okColor.Sprint("sufficient")
	if !check.Sufficient {
		status = errColor.Sprint("insufficient")
	}
	fmt.Fprintf(c.out, "Balance %s %s, message needs %s %s (%s)\n",
		cost.FormatUnits(check.Balance, c.chain.Decimals), c.chain.Symbol,
		cost.FormatUnits(check.Estimate.TotalWei, c.chain.Decimals), c.chain.Symbol,
		status)
}

func (c *cli) listAgents() {
	selected := c.agent().ID
	for _, a := range c.repo.List() {
		marker := " "
		if a.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s %s  %s  $%.2f/msg  pool $%.2f\n", marker, a.ID, agentColor.Sprint(a.Name), a.MessageCost, a.PrizePool)
	}
}

func (c *cli) printHistory() {
	for _, m := range c.session.Messages(c.agent().ID) {
		name := userColor.Sprint(m.Name + ":")
		if m.Role == domain.RoleAssistant {
			name = agentColor.Sprint(m.Name + ":")
		}
		fmt.Fprintf(c.out, "%s %s\n", name, m.Content)
	}
}

func fatal(format string, args ...any) {
	errColor.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
