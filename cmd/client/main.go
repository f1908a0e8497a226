package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kpawlak/taskgrid/internal/client"
	"github.com/kpawlak/taskgrid/internal/client/config"
	"github.com/kpawlak/taskgrid/internal/common"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	cfg := config.LoadConfig()

	priv, pubPEM, err := client.LoadOrCreateKeys(cfg.KeyDir)
	if err != nil {
		return fmt.Errorf("preparing keys: %w", err)
	}

	c := client.New(cfg.ServerURL, priv, pubPEM)
	reader := bufio.NewReader(os.Stdin)

	username, err := client.GetSimpleText(reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}
	password, err := client.GetPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	choice, err := client.GetSimpleText(reader, "Register a new account? [y/N]", os.Stdout)
	if err != nil {
		return err
	}
	if strings.EqualFold(choice, "y") {
		if err := c.Register(ctx, username, string(password)); err != nil {
			if errors.Is(err, common.ErrorConflict) {
				fmt.Println("Username already taken, trying to log in anyway.")
			} else {
				return fmt.Errorf("registration failed: %w", err)
			}
		} else {
			fmt.Println("Registered.")
		}
	}

	if err := c.Login(ctx, username, string(password)); err != nil {
		switch {
		case errors.Is(err, common.ErrorTooManyAttempts):
			return errors.New("too many login attempts, wait a few minutes and try again")
		case errors.Is(err, common.ErrorUnauthorized):
			return errors.New("invalid username or password")
		default:
			return fmt.Errorf("login failed: %w", err)
		}
	}
	fmt.Println("Logged in.")

	for {
		cmd, err := client.GetSimpleText(reader,
			"Command: [t]ask, [b]roadcast task, [m]essages, send [w]hisper, [s]essions, [q]uit", os.Stdout)
		if err != nil {
			return err
		}

		switch strings.ToLower(cmd) {
		case "t":
			doTask(ctx, c)
		case "b":
			doBroadcastTask(ctx, c)
		case "m":
			doReceive(ctx, c)
		case "w":
			doSend(ctx, c, reader)
		case "s":
			doSessions(ctx, c)
		case "q":
			return nil
		default:
			fmt.Println("Unknown command.")
		}
	}
}

func doTask(ctx context.Context, c *client.Client) {
	a, b, err := c.Task(ctx)
	if err != nil {
		fmt.Printf("Fetching task failed: %v\n", err)
		return
	}
	fmt.Printf("Task: %d + %d\n", a, b)

	verdict, err := c.SubmitResult(ctx, a+b)
	if err != nil {
		fmt.Printf("Submitting result failed: %v\n", err)
		return
	}
	fmt.Printf("Answered %d: %s\n", a+b, verdict)
}

func doBroadcastTask(ctx context.Context, c *client.Client) {
	id, content, err := c.BroadcastTask(ctx)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			fmt.Println("No broadcast task available.")
			return
		}
		fmt.Printf("Fetching broadcast task failed: %v\n", err)
		return
	}
	fmt.Printf("Task: %s\n", content)

	answer, err := client.SolveTask(content)
	if err != nil {
		fmt.Printf("Cannot solve task: %v\n", err)
		return
	}

	verdict, err := c.SubmitBroadcastResult(ctx, id, answer)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadySubmitted) {
			fmt.Println("Already answered this task.")
			return
		}
		fmt.Printf("Submitting result failed: %v\n", err)
		return
	}
	fmt.Printf("Answered %v: %s\n", answer, verdict)
}

func doReceive(ctx context.Context, c *client.Client) {
	for {
		msg, ok, err := c.ReceiveMessage(ctx)
		if err != nil {
			fmt.Printf("Receiving failed: %v\n", err)
			return
		}
		if !ok {
			fmt.Println("Inbox empty.")
			return
		}
		fmt.Printf("From %s: %s\n", msg.From, msg.Message)
	}
}

func doSend(ctx context.Context, c *client.Client, reader *bufio.Reader) {
	to, err := client.GetSimpleText(reader, "Recipient", os.Stdout)
	if err != nil {
		fmt.Printf("Input error: %v\n", err)
		return
	}
	text, err := client.GetSimpleText(reader, "Message", os.Stdout)
	if err != nil {
		fmt.Printf("Input error: %v\n", err)
		return
	}

	if err := c.SendMessage(ctx, to, text); err != nil {
		switch {
		case errors.Is(err, common.ErrorSelfSend):
			fmt.Println("Cannot send a message to yourself.")
		case errors.Is(err, common.ErrorRecipientUnavailable):
			fmt.Println("Recipient not available.")
		default:
			fmt.Printf("Sending failed: %v\n", err)
		}
		return
	}
	fmt.Println("Sent.")
}

func doSessions(ctx context.Context, c *client.Client) {
	sessions, err := c.Sessions(ctx)
	if err != nil {
		fmt.Printf("Listing sessions failed: %v\n", err)
		return
	}
	for _, s := range sessions {
		fmt.Printf("%s\t%s\t%s\n", s.Username, s.IPAddress, s.Timestamp.Format("2006-01-02 15:04:05"))
	}
}
