package queue

import "testing"

func TestDecodeTaskFromStreamValues(t *testing.T) {
	task := Task{Type: TaskReconcilePayment, PurchaseID: "pur_1", Source: "webhook"}

	// redis hands values back as strings
	values := map[string]interface{}{}
	for k, v := range task.values() {
		values[k] = v.(string)
	}

	got, err := DecodeTask(values)
	if err != nil {
		t.Fatal(err)
	}
	if got != task {
		t.Fatalf("decoded %+v, want %+v", got, task)
	}
}
