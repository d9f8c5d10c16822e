package factoring

import "math"

// SellingPrice applies a percentage discount to a face amount:
// face - face*rate/100, truncating toward zero. Rates are not bounded;
// negative face amounts and rates above 100 are priced as given.
func SellingPrice(faceAmount int64, discountRateBps uint64) (int64, error) {
	if discountRateBps > math.MaxInt64 {
		return 0, ErrOverflow
	}
	product, ok := mulInt64(faceAmount, int64(discountRateBps))
	if !ok {
		return 0, ErrOverflow
	}
	price, ok := subInt64(faceAmount, product/100)
	if !ok {
		return 0, ErrOverflow
	}
	return price, nil
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

func subInt64(a, b int64) (int64, bool) {
	c := a - b
	if (b > 0 && c > a) || (b < 0 && c < a) {
		return 0, false
	}
	return c, true
}
