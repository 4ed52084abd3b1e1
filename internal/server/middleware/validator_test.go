package middleware

import (
	"testing"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestValidatorNoteEdit(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		req     models.NoteEditRequest
		wantErr bool
	}{
		{"text only", models.NoteEditRequest{JID: "a@b", NoteID: "n1", Text: "hi"}, false},
		{"delete only", models.NoteEditRequest{JID: "a@b", NoteID: "n1", Delete: true}, false},
		{"both", models.NoteEditRequest{JID: "a@b", NoteID: "n1", Text: "hi", Delete: true}, true},
		{"neither", models.NoteEditRequest{JID: "a@b", NoteID: "n1"}, true},
		{"missing jid", models.NoteEditRequest{NoteID: "n1", Text: "hi"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatorSingleMedia(t *testing.T) {
	v := NewValidator()

	img := &models.FileContent{URL: "https://cdn/img.png", Mimetype: "image/png"}
	doc := &models.FileContent{URL: "https://cdn/file.pdf", Mimetype: "application/pdf"}

	assert.NoError(t, v.Validate(models.MessageBody{Text: "hi", Image: img}))
	assert.Error(t, v.Validate(models.MessageBody{Image: img, Document: doc}))
}
