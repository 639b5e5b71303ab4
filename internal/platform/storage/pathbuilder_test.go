package storage

import "testing"

func TestBuildItemImagePath(t *testing.T) {
	path, err := BuildObjectPath(PurposeItemImage, PathParams{
		ItemID:   "itm_123",
		UploadID: "upload789",
		FileName: "rose-bouquet.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "catalog/items/itm_123/images/upload789/rose-bouquet.png"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildReceiptPathUsesInvoiceNumber(t *testing.T) {
	path, err := BuildObjectPath(PurposeReceipt, PathParams{
		OrderID:       "ord_123",
		InvoiceNumber: "BF-2025-000001",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "orders/ord_123/receipts/BF-2025-000001.pdf"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildObjectPathRejectsInvalidSegment(t *testing.T) {
	_, err := BuildObjectPath(PurposeItemImage, PathParams{
		ItemID:   "../bad",
		UploadID: "upload",
		FileName: "file.png",
	})
	if err == nil {
		t.Fatalf("expected error for invalid segment")
	}
}
