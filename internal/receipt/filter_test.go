package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Filter", func() {
	var receipts []Receipt

	BeforeEach(func() {
		receipts = []Receipt{
			sampleReceipt("1", "Pizza Palace", "2024-03-01", Restaurant, "20.00",
				Item{Name: "Margherita", Quantity: 1, Price: dec("12.00")}),
			sampleReceipt("2", "Fresh Mart", "2024-03-02", Groceries, "8.50",
				Item{Name: "Pizza Slice", Quantity: 2, Price: dec("4.25")}),
			sampleReceipt("3", "Green Bowl", "2024-03-03", Restaurant, "11.00",
				Item{Name: "Caesar Salad", Quantity: 1, Price: dec("11.00")}),
			sampleReceipt("4", "Salad Stop", "2024-03-04", Restaurant, "9.00"),
		}
	})

	Describe("Search", func() {
		It("should match everything for an empty query", func() {
			Expect(Search(receipts, "")).To(Equal(receipts))
		})

		It("should match item names case-insensitively", func() {
			got := Search(receipts, "PIZZA")
			Expect(got).To(HaveLen(2))
			Expect(got[1].ID).To(Equal(ID("2")))
		})

		It("should match merchant names", func() {
			got := Search(receipts, "fresh")
			Expect(got).To(HaveLen(1))
			Expect(got[0].MerchantName).To(Equal("Fresh Mart"))
		})

		It("should preserve source order", func() {
			got := Search(receipts, "salad")
			Expect([]ID{got[0].ID, got[1].ID}).To(Equal([]ID{"3", "4"}))
		})

		It("should return an empty slice when nothing matches", func() {
			got := Search(receipts, "sushi")
			Expect(got).NotTo(BeNil())
			Expect(got).To(BeEmpty())
		})

		It("should not modify the input", func() {
			_ = Search(receipts, "salad")
			Expect(receipts).To(HaveLen(4))
			Expect(receipts[0].ID).To(Equal(ID("1")))
		})
	})

	Describe("Visible", func() {
		When("a category-scoped set is searched", func() {
			It("should only return receipts of that set whose names match", func() {
				restaurants := []Receipt{receipts[0], receipts[2], receipts[3]}
				view := Visible(restaurants, Restaurant, "salad")
				Expect(view.Receipts).To(HaveLen(2))
				for _, r := range view.Receipts {
					Expect(r.Category).To(Equal(Restaurant))
				}
				Expect(view.IsEmpty).To(BeFalse())
				Expect(view.HasActiveFilters).To(BeTrue())
			})
		})

		When("nothing is filtered", func() {
			It("should report no active filters", func() {
				view := Visible(receipts, AllCategories, "")
				Expect(view.HasActiveFilters).To(BeFalse())
				Expect(view.EmptyMessage()).To(BeEmpty())
			})
		})

		Describe("empty messages", func() {
			It("should blame the search when a query is active", func() {
				view := Visible(receipts, Restaurant, "sushi")
				Expect(view.IsEmpty).To(BeTrue())
				Expect(view.EmptyMessage()).To(Equal("No receipts found"))
				Expect(view.EmptyHint()).To(Equal("Try a different search term"))
			})

			It("should blame the category when only a category is active", func() {
				view := Visible(nil, Gas, "")
				Expect(view.IsEmpty).To(BeTrue())
				Expect(view.HasActiveFilters).To(BeTrue())
				Expect(view.EmptyMessage()).To(Equal("No gas receipts yet"))
			})

			It("should invite an upload when nothing is filtered", func() {
				view := Visible(nil, AllCategories, "")
				Expect(view.HasActiveFilters).To(BeFalse())
				Expect(view.EmptyMessage()).To(Equal("No receipts yet"))
				Expect(view.EmptyHint()).To(Equal("Upload your first receipt to get started!"))
			})
		})
	})
})
