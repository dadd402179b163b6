// Package runtime holds the fixed RV32IMA runtime-library blob the
// core appends verbatim to its assembly output (§1): malloc, array
// constructors, string primitives and I/O. The front end that supplies
// this blob in production is out of scope; Blob here is placeholder
// assembly with the same entry points, not a validated runtime library,
// so the pipeline's blob-appending step runs without an external
// collaborator attached.
package runtime

// Blob is appended unchanged after every function and data section, the
// same way asmgen.Module.Runtime does in asmgen's Module.RISCV.
const Blob = `
	.text
	.globl malloc
malloc:
	la   t0, __heap_ptr
	lw   t1, 0(t0)
	mv   a1, t1
	addi t2, a0, 3
	andi t2, t2, -4
	add  t1, t1, t2
	sw   t1, 0(t0)
	mv   a0, a1
	ret

	.globl __new_array__
__new_array__:
	# a0 = element count, a1 = element size in bytes; returns ptr past
	# a 4-byte length header at [ptr-4].
	mul  t0, a0, a1
	addi a2, t0, 4
	mv   t3, a0
	mv   t4, a1
	mv   a0, a2
	call malloc
	sw   t3, 0(a0)
	addi a0, a0, 4
	ret

	.globl string_concat
string_concat:
	mv   s0, a0
	mv   s1, a1
	call string_length
	mv   s2, a0
	mv   a0, s1
	call string_length
	add  a2, s2, a0
	addi a2, a2, 1
	mv   s3, a2
	mv   a0, a2
	call malloc
	mv   s4, a0
	mv   a1, s0
	mv   a2, s4
1:	lb   t0, 0(a1)
	beqz t0, 2f
	sb   t0, 0(a2)
	addi a1, a1, 1
	addi a2, a2, 1
	j    1b
2:	mv   a1, s1
3:	lb   t0, 0(a1)
	beqz t0, 4f
	sb   t0, 0(a2)
	addi a1, a1, 1
	addi a2, a2, 1
	j    3b
4:	sb   zero, 0(a2)
	mv   a0, s4
	ret

	.globl string_compare
string_compare:
1:	lb   t0, 0(a0)
	lb   t1, 0(a1)
	bne  t0, t1, 2f
	beqz t0, 3f
	addi a0, a0, 1
	addi a1, a1, 1
	j    1b
2:	sub  a0, t0, t1
	ret
3:	li   a0, 0
	ret

	.globl string_length
string_length:
	mv   t0, a0
	li   a1, 0
1:	lb   t1, 0(t0)
	beqz t1, 2f
	addi t0, t0, 1
	addi a1, a1, 1
	j    1b
2:	mv   a0, a1
	ret

	.globl string_substring
string_substring:
	# a0 = str, a1 = start, a2 = end (exclusive)
	mv   s0, a0
	sub  s1, a2, a1
	add  a0, s1, 1
	call malloc
	mv   s2, a0
	add  s0, s0, a1
	mv   t0, zero
1:	bge  t0, s1, 2f
	add  t1, s0, t0
	lb   t2, 0(t1)
	add  t1, s2, t0
	sb   t2, 0(t1)
	addi t0, t0, 1
	j    1b
2:	add  t1, s2, s1
	sb   zero, 0(t1)
	mv   a0, s2
	ret

	.globl string_parseInt
string_parseInt:
	li   a1, 0
	li   t2, 0
	lb   t0, 0(a0)
	li   t3, 45
	bne  t0, t3, 1f
	li   t2, 1
	addi a0, a0, 1
1:	lb   t0, 0(a0)
	beqz t0, 3f
	li   t3, 48
	sub  t0, t0, t3
	li   t4, 10
	mul  a1, a1, t4
	add  a1, a1, t0
	addi a0, a0, 1
	j    1b
3:	beqz t2, 4f
	sub  a1, zero, a1
4:	mv   a0, a1
	ret

	.globl string_ord
string_ord:
	lb   a0, 0(a0)
	ret

	.globl io_print
io_print:
	# a0 = NUL-terminated string; writes it to fd 1 via the
	# linux-riscv32 write syscall.
	mv   a1, a0
	call string_length
	mv   a2, a0
	mv   a0, a1
	mv   a1, a2
	mv   a2, a0
	li   a7, 64
	li   a0, 1
	ecall
	ret

	.data
	.p2align 2
__heap_ptr:
	.word __heap_start
	.bss
__heap_start:
	.space 1048576
`
