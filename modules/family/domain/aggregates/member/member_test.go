package member_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
)

func TestNew_TrimsAndDefaultsAlive(t *testing.T) {
	m := member.New("  محمد ", " الفرع الأول ")
	require.Equal(t, "محمد", m.FullName())
	require.Equal(t, "الفرع الأول", m.BranchName())
	require.True(t, m.Profile().IsAlive)

	_, ok := m.ParentID()
	require.False(t, ok)
}

func TestWithParent(t *testing.T) {
	m := member.New("علي", "ب").WithID(7).WithParent(3)
	require.Equal(t, int64(7), m.ID())
	pid, ok := m.ParentID()
	require.True(t, ok)
	require.Equal(t, int64(3), pid)
}

func TestExtractedRecord_Validate(t *testing.T) {
	ok := member.ExtractedRecord{FullName: " محمد ", ParentName: "علي"}.Normalize()
	require.NoError(t, ok.Validate())

	err := member.ExtractedRecord{FullName: "م"}.Validate()
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Equal(t, "FullName", verrs[0].Field())

	require.Error(t, member.ExtractedRecord{}.Validate())
}
