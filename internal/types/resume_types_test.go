package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelType(t *testing.T) {
	mt, err := ParseModelType("gpt_fitz")
	require.NoError(t, err)
	assert.Equal(t, ModelTypeGPTFitz, mt)

	mt, err = ParseModelType(" mistral ")
	require.NoError(t, err)
	assert.Equal(t, ModelTypeMistral, mt)

	_, err = ParseModelType("claude")
	assert.Error(t, err)
}

func TestResumeFields_FlexibleScalars(t *testing.T) {
	raw := `{"Name":"Ada","Email":"ada@example.com","Phone Number":5551234,"Gpa":3.8,"Skills":{"lang":["go"]}}`

	var fields ResumeFields
	require.NoError(t, json.Unmarshal([]byte(raw), &fields))

	assert.Equal(t, FlexString("Ada"), fields.Name)
	assert.Equal(t, FlexString("5551234"), fields.PhoneNumber)
	assert.Equal(t, FlexString("3.8"), fields.GPA)
	assert.JSONEq(t, `{"lang":["go"]}`, string(fields.Skills))
	assert.Nil(t, fields.Projects)
}

func TestFlexString_NullAndObject(t *testing.T) {
	var f FlexString
	require.NoError(t, json.Unmarshal([]byte(`null`), &f))
	assert.Equal(t, FlexString(""), f)

	err := json.Unmarshal([]byte(`{"a":1}`), &f)
	assert.Error(t, err)
}
