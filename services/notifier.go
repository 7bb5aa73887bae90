package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"referral-bridge-system/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"gorm.io/gorm"
)

// Notifier sends lifecycle emails through SES. Every send is best-effort: a
// failed mail is logged and never fails the transition that triggered it.
// Addresses come from the local email mirror maintained by the sync worker.
type Notifier struct {
	DB     *gorm.DB
	Client *ses.Client
	Sender string
}

// NewNotifier returns nil (notifications disabled) when NOTIFY_SENDER_EMAIL
// is not set.
func NewNotifier(db *gorm.DB) (*Notifier, error) {
	sender := os.Getenv("NOTIFY_SENDER_EMAIL")
	if sender == "" {
		log.Println("✉️  NOTIFY_SENDER_EMAIL not set — lifecycle emails disabled")
		return nil, nil
	}
	region := os.Getenv("AWS_SES_REGION")
	if region == "" {
		region = "ap-south-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading SES config: %w", err)
	}
	return &Notifier{DB: db, Client: ses.NewFromConfig(cfg), Sender: sender}, nil
}

// RequestCreated mails the referrer about a new incoming request.
func (n *Notifier) RequestCreated(req *models.ReferralRequest) {
	n.send(req.ReferrerID,
		"New referral request",
		fmt.Sprintf("You have a new referral request (ref %s). Open your dashboard to review the candidate.", req.ID))
}

// MarkedReferred mails the seeker that the referrer has submitted them.
func (n *Notifier) MarkedReferred(req *models.ReferralRequest) {
	n.send(req.SeekerID,
		"You've been referred!",
		fmt.Sprintf("Your referral request %s was marked as referred. Please confirm once you hear back — it auto-confirms after 5 days.", req.ID))
}

// RequestConfirmed mails the referrer that the referral was confirmed.
func (n *Notifier) RequestConfirmed(req *models.ReferralRequest) {
	n.send(req.ReferrerID,
		"Referral confirmed",
		fmt.Sprintf("Referral request %s is now confirmed. Your points have been updated.", req.ID))
}

func (n *Notifier) send(userID, subject, body string) {
	var prof models.Profile
	if err := n.DB.Select("email").Where("id = ?", userID).First(&prof).Error; err != nil || prof.Email == "" {
		log.Printf("✉️  No email on file for %s — skipping %q", userID, subject)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := n.Client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.Sender),
		Destination: &types.Destination{ToAddresses: []string{prof.Email}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body:    &types.Body{Text: &types.Content{Data: aws.String(body)}},
		},
	})
	if err != nil {
		log.Printf("✉️  Failed to send %q to %s: %v", subject, userID, err)
		return
	}
	log.Printf("✉️  Sent %q to %s", subject, userID)
}
