package systemusers

import (
	"testing"

	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortUID(t *testing.T) {
	assert.Equal(t, "N/A", shortUID(""))
	assert.Equal(t, "abc", shortUID("abc"))
	assert.Equal(t, "abcdefgh...", shortUID("abcdefghijkl"))
}

func TestFilterRows(t *testing.T) {
	list := []models.UserProfile{
		{UID: "u1", Username: "José Díaz", Email: "jose@x.com", Role: "admin"},
		{UID: "u2", Username: "Ada", Email: "ada@lovelace.org"},
		{UID: "u3", Email: "ghost@x.com", PhotoURL: "https://img/g"},
	}

	all := filterRows(list, "", "", "u2")
	require.Len(t, all, 3)
	assert.Equal(t, "admin", all[0].Role)
	assert.Equal(t, "user", all[1].Role)
	assert.True(t, all[1].IsSelf)
	assert.Equal(t, "Unknown", all[2].Username)
	assert.Equal(t, "https://img/g", all[2].AvatarURL)
	assert.Contains(t, all[1].AvatarURL, "seed=Ada")

	byName := filterRows(list, "jose", "", "")
	require.Len(t, byName, 1)
	assert.Equal(t, "u1", byName[0].UID)

	byEmail := filterRows(list, "LOVELACE", "", "")
	require.Len(t, byEmail, 1)
	assert.Equal(t, "u2", byEmail[0].UID)

	admins := filterRows(list, "", "admin", "")
	require.Len(t, admins, 1)
	users := filterRows(list, "", "user", "")
	assert.Len(t, users, 2)
}

func TestListSelfURL(t *testing.T) {
	assert.Equal(t, "/system-users", listSelfURL("", "", 1))
	assert.Equal(t, "/system-users?role=admin&search=ada", listSelfURL("ada", "admin", 1))
	assert.Equal(t, "/system-users?start=51", listSelfURL("", "", 51))
}

func TestRowURL(t *testing.T) {
	got := rowURL("u1", "edit", "/system-users?role=admin&start=51")
	assert.Equal(t, "/system-users/u1/edit?return=%2Fsystem-users%3Frole%3Dadmin%26start%3D51", got)
}
