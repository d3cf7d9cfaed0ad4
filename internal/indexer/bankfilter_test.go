package indexer

import "testing"

func TestIsBankInfo_DetectsIBAN(t *testing.T) {
	if !isBankInfo("IBAN: DE89 3704 0044 0532 0130 00") {
		t.Fatal("expected IBAN-bearing text to be flagged as bank info")
	}
}

func TestIsBankInfo_DetectsSWIFT(t *testing.T) {
	if !isBankInfo("SWIFT Code DEUTDEFF") {
		t.Fatal("expected SWIFT-bearing text to be flagged as bank info")
	}
}

func TestIsBankInfo_DetectsKeyword(t *testing.T) {
	if !isBankInfo("Beneficiary bank details attached") {
		t.Fatal("expected keyword match to be flagged as bank info")
	}
	if !isBankInfo("رقم الحساب البنكي") {
		t.Fatal("expected Arabic keyword match to be flagged as bank info")
	}
}

func TestIsBankInfo_DetectsTooShort(t *testing.T) {
	if !isBankInfo("ab") {
		t.Fatal("expected a 2-character item to be excluded as too short")
	}
}

func TestIsBankInfo_AllowsOrdinaryLineItem(t *testing.T) {
	if isBankInfo("Stainless steel hex bolt M8x40") {
		t.Fatal("expected an ordinary catalog item to pass the bank filter")
	}
}
