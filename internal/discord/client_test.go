package discord

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	members   []*discordgo.Member
	memberErr error
	pages     []string
	listErr   error
}

func (f *fakeSession) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	if f.memberErr != nil {
		return nil, f.memberErr
	}
	for _, m := range f.members {
		if m.User.ID == userID {
			return m, nil
		}
	}
	return nil, restError(http.StatusNotFound)
}

func (f *fakeSession) GuildMembers(guildID, after string, limit int, _ ...discordgo.RequestOption) ([]*discordgo.Member, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.pages = append(f.pages, after)
	start := 0
	if after != "" {
		for i, m := range f.members {
			if m.User.ID == after {
				start = i + 1
			}
		}
	}
	end := start + limit
	if end > len(f.members) {
		end = len(f.members)
	}
	return f.members[start:end], nil
}

func restError(status int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: status}}
}

func makeMembers(n int) []*discordgo.Member {
	out := make([]*discordgo.Member, n)
	for i := range out {
		out[i] = &discordgo.Member{User: &discordgo.User{ID: fmt.Sprintf("%05d", i), Username: fmt.Sprintf("pilot%d", i)}}
	}
	return out
}

func TestMember(t *testing.T) {
	fake := &fakeSession{members: []*discordgo.Member{{
		User:  &discordgo.User{ID: "42", Username: "orison"},
		Nick:  "Captain",
		Roles: []string{"r1", "r2"},
	}}}
	c := NewWithSession(fake, "guild")

	m, err := c.Member(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", m.UserID)
	assert.Equal(t, "Captain", m.DisplayName())
	assert.Equal(t, []string{"r1", "r2"}, m.Roles)

	_, err = c.Member(context.Background(), "7")
	assert.ErrorIs(t, err, ErrNotGuildMember)

	fake.memberErr = restError(http.StatusInternalServerError)
	_, err = c.Member(context.Background(), "42")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotGuildMember)
}

func TestMembers_Pages(t *testing.T) {
	fake := &fakeSession{members: makeMembers(2500)}
	c := NewWithSession(fake, "guild")

	got, err := c.Members(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2500)
	assert.Equal(t, []string{"", "00999", "01999"}, fake.pages)
}

func TestMembers_ExactPage(t *testing.T) {
	fake := &fakeSession{members: makeMembers(1000)}
	c := NewWithSession(fake, "guild")

	got, err := c.Members(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1000)
	// a full page forces one more, empty, request
	assert.Len(t, fake.pages, 2)
}

func TestMembers_Forbidden(t *testing.T) {
	c := NewWithSession(&fakeSession{listErr: restError(http.StatusForbidden)}, "guild")
	_, err := c.Members(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Server Members intent")
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "pilot", (&Member{Username: "pilot"}).DisplayName())
}
