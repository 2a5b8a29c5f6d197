package main

import (
	"bufio"
	"chat-relay/client"
	"chat-relay/clock"
	"chat-relay/domain"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	username := pflag.StringP("username", "u", "", "account username")
	password := pflag.StringP("password", "p", "", "account password")
	signup := pflag.Bool("signup", false, "create the account before connecting")
	picture := pflag.String("picture", "", "PNG or JPEG profile picture used with --signup")
	pflag.StringVar(&config.ServerURL, "server", config.ServerURL, "relay base URL")
	pflag.Parse()

	if *username == "" || *password == "" {
		pflag.Usage()
		return fmt.Errorf("--username and --password are required")
	}
	color.Enable = config.Colours
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Obtain a token
	accounts := client.NewAccountClient(config.ServerURL, config.RequestTimeout)
	var token string
	if *signup {
		dataURL, err := pictureDataURL(*picture)
		if err != nil {
			return err
		}
		token, err = accounts.Signup(ctx, *username, *password, dataURL)
		if err != nil {
			return fmt.Errorf("signup: %w", err)
		}
	} else if token, err = accounts.Signin(ctx, *username, *password); err != nil {
		return fmt.Errorf("signin: %w", err)
	}

	// 2. Open the supervised session
	endpoint, err := accounts.RelayEndpoint()
	if err != nil {
		return err
	}
	dialer := client.NewWebSocketDialer(endpoint, config.RequestTimeout, config.WriteTimeout)
	session := client.NewSupervisor(log, dialer, clock.Real(), client.Config{
		BaseDelay:   config.BaseDelay,
		MaxDelay:    config.MaxDelay,
		MaxAttempts: config.MaxAttempts,
		BufferSize:  64,
	}, domain.Credential{Username: strings.ToLower(*username), Token: token})

	if err = session.Start(ctx); err != nil {
		color.Yellow.Printf("First connection failed: %v\n", err)
	}

	go readInput(session)

	// 3. Print until the session ends
	for {
		select {
		case msg := <-session.Messages():
			printMessage(msg, *username)
		case status := <-session.Statuses():
			printStatus(status)
		case <-session.Done():
			printStatus(session.Status())
			if status := session.Status(); status == domain.StatusDisconnectedMaxAttemptsReached {
				return session.Err()
			}
			return nil
		}
	}
}

func readInput(session *client.Supervisor) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/logout":
			session.Logout()
			return
		}
		if err := session.Send(line); err != nil {
			color.Red.Printf("Not sent: %v\n", err)
		}
	}
	session.Logout()
}

func printMessage(msg domain.OutboundMessage, self string) {
	at := msg.Timestamp
	if ts, err := msg.ParseTimestamp(); err == nil {
		at = ts.Local().Format("15:04:05")
	}
	sender := color.Cyan.Sprint(msg.Sender)
	if strings.EqualFold(msg.Sender, self) {
		sender = color.Green.Sprint(msg.Sender)
	}
	fmt.Printf("%s %s: %s\n", color.Gray.Sprint(at), sender, msg.Content)
}

func printStatus(status domain.SessionStatus) {
	switch status {
	case domain.StatusConnected:
		color.Green.Printf("● %s\n", status)
	case domain.StatusConnecting:
		color.Yellow.Printf("● %s\n", status)
	default:
		color.Red.Printf("● %s\n", status)
	}
}

func pictureDataURL(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading profile picture: %w", err)
	}
	return fmt.Sprintf("data:%s;base64,%s", mimetype.Detect(raw).String(), base64.StdEncoding.EncodeToString(raw)), nil
}
