package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" instructor ")
	require.NoError(t, err)
	assert.Equal(t, RoleInstructor, role)

	_, err = ParseRole("TEACHER")
	assert.Error(t, err)
}

func TestProgressCountsPercentage(t *testing.T) {
	assert.Equal(t, 0.0, ProgressCounts{}.Percentage())
	assert.Equal(t, 100.0, ProgressCounts{Total: 6, Completed: 6}.Percentage())
	assert.Equal(t, 33.33, ProgressCounts{Total: 3, Completed: 1}.Percentage())
	assert.Equal(t, 66.67, ProgressCounts{Total: 3, Completed: 2}.Percentage())
}

func TestProgressCountsCompleteIgnoresRounding(t *testing.T) {
	almost := ProgressCounts{Total: 20000, Completed: 19999}
	assert.Equal(t, 100.0, almost.Percentage())
	assert.False(t, almost.Complete())

	assert.True(t, ProgressCounts{Total: 20000, Completed: 20000}.Complete())
	assert.False(t, ProgressCounts{}.Complete())
}

func TestCourseFilterIsDefault(t *testing.T) {
	assert.True(t, CourseFilter{}.IsDefault())
	assert.True(t, CourseFilter{Page: 1, PageSize: 20, PublishedOnly: true}.IsDefault())
	assert.False(t, CourseFilter{Search: "go"}.IsDefault())
	assert.False(t, CourseFilter{Page: 2}.IsDefault())
}
