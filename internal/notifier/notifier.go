package notifier

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/trunov/audiohub/internal/queue"
)

// SMTP mails the owner when their audio is ready. Owner names are email
// addresses in this system.
type SMTP struct {
	Host     string
	Port     int
	From     string
	Password string
}

func New(host string, port int, from, password string) *SMTP {
	return &SMTP{
		Host:     host,
		Port:     port,
		From:     from,
		Password: password,
	}
}

func (n *SMTP) Notify(ctx context.Context, job queue.JobDescriptor) error {
	if n.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}

	body := fmt.Sprintf(
		"To: %s\r\nSubject: Your audio file is ready\r\n\r\n"+
			"The conversion of %q has finished.\r\nDownload id: %s\r\n",
		job.Owner, job.OriginalFilename, job.ResultBlobID,
	)

	addr := fmt.Sprintf("%s:%d", n.Host, n.Port)
	auth := smtp.PlainAuth("", n.From, n.Password, n.Host)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, n.From, []string{job.Owner}, []byte(body))
	}()

	// net/smtp has no context support; bound the call by the caller's
	// deadline instead of hanging the consume loop.
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send notification to %s: %w", job.Owner, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
