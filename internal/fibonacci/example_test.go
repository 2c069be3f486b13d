package fibonacci

import (
	"context"
	"fmt"
)

// ExampleFibonacci shows the sequence extended to negative indices.
func ExampleFibonacci() {
	for _, n := range []int32{-8, -3, -2, -1, 0, 1, 2, 3, 8} {
		fmt.Printf("F(%d) = %s\n", n, Fibonacci(n))
	}
	// Output:
	// F(-8) = -21
	// F(-3) = 2
	// F(-2) = -1
	// F(-1) = 1
	// F(0) = 0
	// F(1) = 1
	// F(2) = 1
	// F(3) = 2
	// F(8) = 21
}

// ExampleDefaultFactory demonstrates using the factory to obtain
// pre-registered calculators by name.
func ExampleDefaultFactory() {
	factory := NewDefaultFactory()

	calc, err := factory.Get("fast")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	result, err := calc.Calculate(context.Background(), 10)
	if err != nil {
		fmt.Printf("Calculation error: %v\n", err)
		return
	}

	fmt.Println(calc.Name(), result)
	// Output:
	// fast 55
}
