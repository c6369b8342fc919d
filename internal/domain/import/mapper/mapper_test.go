package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoMap(t *testing.T) {
	t.Run("maps synonym headers", func(t *testing.T) {
		m := AutoMap([]string{"Transaction Date", "Amount", "Memo"})
		assert.Equal(t, "Transaction Date", m[FieldDate])
		assert.Equal(t, "Amount", m[FieldAmount])
		assert.Equal(t, "Memo", m[FieldNote])
		assert.Empty(t, m[FieldDebit])
	})

	t.Run("first header in original order wins", func(t *testing.T) {
		m := AutoMap([]string{"Posted Date", "Date"})
		assert.Equal(t, "Posted Date", m[FieldDate])
	})

	t.Run("maps debit and credit columns", func(t *testing.T) {
		m := AutoMap([]string{"Date", "Withdrawal", "Deposit"})
		assert.Equal(t, "Withdrawal", m[FieldDebit])
		assert.Equal(t, "Deposit", m[FieldCredit])
		assert.Equal(t, AmountModeSplit, m.Mode())
	})

	t.Run("maps type currency and category", func(t *testing.T) {
		m := AutoMap([]string{"Date", "Amount", "DR/CR", "Currency Code", "Category"})
		assert.Equal(t, "DR/CR", m[FieldType])
		assert.Equal(t, "Currency Code", m[FieldCurrency])
		assert.Equal(t, "Category", m[FieldCategory])
	})

	t.Run("fuzzy pass catches misspelled header", func(t *testing.T) {
		m := AutoMap([]string{"Transacton Date", "Amount"})
		assert.Equal(t, "Transacton Date", m[FieldDate])
	})

	t.Run("fuzzy pass never steals a claimed header", func(t *testing.T) {
		m := AutoMap([]string{"Transaction Date", "Amount"})
		assert.Equal(t, "Transaction Date", m[FieldDate])
		assert.Empty(t, m[FieldType])
	})

	t.Run("unknown headers stay unmapped", func(t *testing.T) {
		m := AutoMap([]string{"Foo", "Bar"})
		assert.False(t, m.ImportReady())
	})
}

func TestMappingImportReady(t *testing.T) {
	assert.False(t, Mapping{}.ImportReady())
	assert.False(t, Mapping{FieldAmount: "Amount"}.ImportReady())
	assert.False(t, Mapping{FieldDate: "Date"}.ImportReady())
	assert.True(t, Mapping{FieldDate: "Date", FieldAmount: "Amount"}.ImportReady())
	assert.True(t, Mapping{FieldDate: "Date", FieldDebit: "Withdrawal"}.ImportReady())
	assert.True(t, Mapping{FieldDate: "Date", FieldCredit: "Deposit"}.ImportReady())
}

func TestMappingMode(t *testing.T) {
	assert.Equal(t, AmountModeSingle, Mapping{FieldDate: "Date", FieldAmount: "Amount"}.Mode())
	assert.Equal(t, AmountModeSplit, Mapping{FieldDate: "Date", FieldDebit: "Debit"}.Mode())
	// Amount mapped beats debit/credit presence.
	assert.Equal(t, AmountModeSingle, Mapping{FieldAmount: "Amount", FieldDebit: "Debit"}.Mode())
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "transactiondate", NormalizeHeader("Transaction Date"))
	assert.Equal(t, "drcr", NormalizeHeader("DR/CR"))
	assert.Equal(t, "amt", NormalizeHeader(" AMT. "))
}
