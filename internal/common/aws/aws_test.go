// internal/common/aws/aws_test.go
package aws

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
)

func TestNewEmailInput(t *testing.T) {
	input := NewEmailInput("awx@example.com", "ops@example.com", "Job #1 failed", "details")

	assert.Equal(t, []string{"ops@example.com"}, input.Destination.ToAddresses)
	assert.Equal(t, "awx@example.com", aws.ToString(input.Source))
	assert.Equal(t, "Job #1 failed", aws.ToString(input.Message.Subject.Data))
	assert.Equal(t, "details", aws.ToString(input.Message.Body.Text.Data))
	assert.Nil(t, input.Message.Body.Html)
}

func TestNewSMSInput(t *testing.T) {
	input := NewSMSInput("+15550001", "Job #1 failed", "")
	assert.Equal(t, "+15550001", aws.ToString(input.PhoneNumber))
	assert.Contains(t, input.MessageAttributes, "AWS.SNS.SMS.SMSType")
	assert.NotContains(t, input.MessageAttributes, "AWS.SNS.SMS.SenderID")

	withSender := NewSMSInput("+15550001", "hi", "AWX")
	assert.Equal(t, "AWX", aws.ToString(withSender.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
}
