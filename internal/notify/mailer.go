package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"text/template"
	"time"

	"cabanas/internal/config"
	"cabanas/internal/models"

	"github.com/rs/zerolog"
)

const confirmationTemplate = `Hola {{.CustomerName}},

Tu reserva en {{.UnitName}} está confirmada.

Llegada:  {{.CheckIn}} desde las {{.CheckInHour}}:00
Salida:   {{.CheckOut}} hasta las {{.CheckOutHour}}:00
Personas: {{.PartySize}}
{{- if .Towels}}
Toallas:  {{.Towels}}
{{- end}}
{{- if .JacuzziDays}}
Tinaja:   {{.JacuzziDays}}
{{- end}}

Total pagado: ${{.Total}} CLP
Código de reserva: {{.BookingID}}

¡Te esperamos!
`

type confirmationData struct {
	CustomerName string
	UnitName     string
	CheckIn      string
	CheckOut     string
	CheckInHour  int
	CheckOutHour int
	PartySize    int
	Towels       int
	JacuzziDays  string
	Total        int64
	BookingID    string
}

// SMTPMailer sends the guest confirmation email after a payment lands.
// Sends are best effort: the reconciler logs failures and moves on.
type SMTPMailer struct {
	cfg          config.EmailConfig
	checkInHour  int
	checkOutHour int
	tmpl         *template.Template
	logger       zerolog.Logger
}

func NewSMTPMailer(cfg config.EmailConfig, checkInHour, checkOutHour int, logger *zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:          cfg,
		checkInHour:  checkInHour,
		checkOutHour: checkOutHour,
		tmpl:         template.Must(template.New("confirmation").Parse(confirmationTemplate)),
		logger:       logger.With().Str("component", "mailer").Logger(),
	}
}

func (m *SMTPMailer) SendBookingConfirmation(ctx context.Context, booking *models.Booking) error {
	if !m.cfg.Enabled {
		m.logger.Debug().Str("booking_id", booking.ID).Msg("email disabled, skipping confirmation")
		return nil
	}
	if booking.CustomerEmail == "" {
		return fmt.Errorf("booking %s has no customer email", booking.ID)
	}

	body, err := m.render(booking)
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}

	subject := fmt.Sprintf("Reserva confirmada - %s", booking.UnitName)
	msg := m.buildMessage(booking.CustomerEmail, subject, body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.cfg.From, []string{booking.CustomerEmail}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send confirmation email: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	m.logger.Info().
		Str("booking_id", booking.ID).
		Str("to", booking.CustomerEmail).
		Msg("confirmation email sent")
	return nil
}

func (m *SMTPMailer) render(booking *models.Booking) (string, error) {
	days := ""
	for i, d := range booking.JacuzziDays {
		if i > 0 {
			days += ", "
		}
		days += d
	}
	data := confirmationData{
		CustomerName: booking.CustomerName,
		UnitName:     booking.UnitName,
		CheckIn:      booking.StartDate.Format(models.DateLayout),
		CheckOut:     booking.EndDate.Format(models.DateLayout),
		CheckInHour:  m.checkInHour,
		CheckOutHour: m.checkOutHour,
		PartySize:    booking.PartySize,
		Towels:       booking.Towels,
		JacuzziDays:  days,
		Total:        booking.Price.Total,
		BookingID:    booking.ID,
	}

	var buf bytes.Buffer
	if err := m.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m *SMTPMailer) buildMessage(to, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	if m.cfg.ReplyTo != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", m.cfg.ReplyTo)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}
