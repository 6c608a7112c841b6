package card

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lorekit/internal/lore"
)

func TestDecodeV1(t *testing.T) {
	data := []byte(`{
		"name": "Aria",
		"description": "A wandering bard.",
		"personality": "Curious.",
		"scenario": "A tavern.",
		"first_mes": "Well met.",
		"mes_example": "Aria: A song?"
	}`)

	p, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, SpecV1, p.Spec())
	assert.Equal(t, "Aria", p.Name())
	assert.Equal(t, "Well met.", p.Greeting())
	assert.Nil(t, p.Book())

	desc, err := p.FieldText(FieldDescription)
	require.NoError(t, err)
	assert.Equal(t, "A wandering bard.", desc)
	dialogue, err := p.FieldText(FieldExampleDialogue)
	require.NoError(t, err)
	assert.Equal(t, "Aria: A song?", dialogue)
}

func TestDecodeV2(t *testing.T) {
	data := []byte(`{
		"spec": "chara_card_v2",
		"spec_version": "2.0",
		"data": {
			"name": "Aria",
			"first_mes": "Well met.",
			"alternate_greetings": ["Hail!", "Greetings."],
			"character_book": {
				"name": "world",
				"scan_depth": 3,
				"recursive_scanning": true,
				"entries": [
					{"id": 1, "keys": ["dragon"], "content": "dragon facts"},
					{"id": 2, "keys": ["elf"], "content": "elf facts",
					 "enabled": false, "probability": 25, "insertion_order": 7}
				]
			}
		}
	}`)

	p, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, SpecV2, p.Spec())
	assert.Equal(t, "Aria", p.Name())
	assert.Equal(t, []string{"Hail!", "Greetings."}, p.AlternateGreetings())

	book := p.Book()
	require.NotNil(t, book)
	assert.Equal(t, "world", book.Name)
	assert.Equal(t, 3, book.ScanDepth)
	assert.True(t, book.RecursiveScanning)
	require.Len(t, book.Entries, 2)

	// Wire defaults: enabled true, probability 100, insertion order from
	// slice position when absent.
	first := book.Entries[0]
	assert.True(t, first.Enabled)
	assert.Equal(t, 100, first.Probability)
	assert.Equal(t, 0, first.InsertionOrder)

	// Explicit values survive.
	second := book.Entries[1]
	assert.False(t, second.Enabled)
	assert.Equal(t, 25, second.Probability)
	assert.Equal(t, 7, second.InsertionOrder)
}

func TestDecodeBook(t *testing.T) {
	data := []byte(`{
		"name": "world",
		"scan_depth": 2,
		"entries": [
			{"id": 1, "keys": ["dragon"], "content": "dragon facts"},
			{"id": 2, "keys": ["elf"], "content": "elf facts",
			 "enabled": false, "probability": 25, "insertion_order": 7}
		]
	}`)

	book, err := DecodeBook(data)
	require.NoError(t, err)
	assert.Equal(t, "world", book.Name)
	assert.Equal(t, 2, book.ScanDepth)
	require.Len(t, book.Entries, 2)

	t.Run("omitted enabled and probability get wire defaults", func(t *testing.T) {
		first := book.Entries[0]
		assert.True(t, first.Enabled)
		assert.Equal(t, 100, first.Probability)
		assert.Equal(t, 0, first.InsertionOrder)
	})

	t.Run("explicit values survive", func(t *testing.T) {
		second := book.Entries[1]
		assert.False(t, second.Enabled)
		assert.Equal(t, 25, second.Probability)
		assert.Equal(t, 7, second.InsertionOrder)
	})

	t.Run("standalone books scan like embedded ones", func(t *testing.T) {
		// The same entry bytes must activate identically whether the book
		// arrived inside a card's character_book or on its own.
		res := lore.NewEngine().Scan(book, "a dragon appears", nil, lore.ScanOptions{})
		require.Len(t, res.Activations, 1)
		assert.Equal(t, 1, res.Activations[0].Entry.ID)
	})

	t.Run("malformed json errors", func(t *testing.T) {
		_, err := DecodeBook([]byte(`{"entries": `))
		assert.ErrorIs(t, err, ErrInvalidBook)
	})

	t.Run("validation failures surface", func(t *testing.T) {
		_, err := DecodeBook([]byte(`{"entries": [
			{"id": 1, "keys": ["a"], "content": "x"},
			{"id": 1, "keys": ["b"], "content": "y"}
		]}`))
		assert.ErrorIs(t, err, ErrInvalidBook)
	})
}

func TestDecodeErrors(t *testing.T) {
	t.Run("unsupported spec tag", func(t *testing.T) {
		_, err := Decode([]byte(`{"spec": "chara_card_v3", "data": {"name": "X"}}`))
		assert.ErrorIs(t, err, ErrInvalidProfile)
	})

	t.Run("v2 wrapper without data", func(t *testing.T) {
		_, err := Decode([]byte(`{"spec": "chara_card_v2"}`))
		assert.ErrorIs(t, err, ErrInvalidProfile)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := Decode([]byte(`{"description": "nameless"}`))
		assert.ErrorIs(t, err, ErrInvalidProfile)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := Decode([]byte(`{"name": `))
		assert.ErrorIs(t, err, ErrInvalidProfile)
	})

	t.Run("invalid character book", func(t *testing.T) {
		_, err := Decode([]byte(`{
			"name": "Aria",
			"character_book": {"entries": [
				{"id": 1, "keys": ["a"], "content": "x"},
				{"id": 1, "keys": ["b"], "content": "y"}
			]}
		}`))
		assert.ErrorIs(t, err, ErrInvalidProfile)
	})
}

func TestWithField(t *testing.T) {
	p, err := New(SpecV1, map[string]string{
		FieldName:        "Aria",
		FieldDescription: "original",
	}, nil)
	require.NoError(t, err)

	t.Run("copy carries the new value", func(t *testing.T) {
		q, err := p.WithField(FieldDescription, "edited")
		require.NoError(t, err)
		text, _ := q.FieldText(FieldDescription)
		assert.Equal(t, "edited", text)
	})

	t.Run("receiver is untouched", func(t *testing.T) {
		_, err := p.WithField(FieldDescription, "edited")
		require.NoError(t, err)
		text, _ := p.FieldText(FieldDescription)
		assert.Equal(t, "original", text)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := p.WithField("mood", "gloomy")
		assert.ErrorIs(t, err, ErrInvalidProfile)
	})
}

func TestFieldsOrder(t *testing.T) {
	p, err := New(SpecV1, map[string]string{FieldName: "Aria"}, nil)
	require.NoError(t, err)

	fields := p.Fields()
	require.Len(t, fields, len(FieldOrder()))
	for i, name := range FieldOrder() {
		assert.Equal(t, name, fields[i].Name)
	}
	// Absent text is an empty field, never a missing one.
	assert.Equal(t, "", fields[1].Text)
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Run("v2 keeps its wrapper", func(t *testing.T) {
		book := &lore.Book{Entries: []lore.Entry{
			{ID: 1, Keys: []string{"dragon"}, Content: "facts", Enabled: true, Probability: 100},
		}}
		p, err := New(SpecV2, map[string]string{
			FieldName:     "Aria",
			FieldGreeting: "Well met.",
		}, book)
		require.NoError(t, err)

		out, err := json.Marshal(p)
		require.NoError(t, err)

		q, err := Decode(out)
		require.NoError(t, err)
		assert.Equal(t, SpecV2, q.Spec())
		assert.Equal(t, "Aria", q.Name())
		require.NotNil(t, q.Book())
		require.Len(t, q.Book().Entries, 1)
		assert.Equal(t, 100, q.Book().Entries[0].Probability)
		assert.True(t, q.Book().Entries[0].Enabled)
	})

	t.Run("v1 stays flat", func(t *testing.T) {
		p, err := New(SpecV1, map[string]string{FieldName: "Aria"}, nil)
		require.NoError(t, err)

		out, err := json.Marshal(p)
		require.NoError(t, err)
		assert.NotContains(t, string(out), `"spec"`)

		q, err := Decode(out)
		require.NoError(t, err)
		assert.Equal(t, SpecV1, q.Spec())
	})
}
